package reporting

import (
	"sort"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

const DefaultTopDomains = 10

// TopDomains counts items per base domain and returns the n largest. Unknown is
// excluded and ties are broken alphabetically.
func TopDomains(items []models.AnalyzedItem, n int) []models.DomainCount {
	if n <= 0 {
		n = DefaultTopDomains
	}
	counts := make(map[string]int)
	for _, it := range items {
		if it.BaseDomain == "" || it.BaseDomain == models.UnknownDomain {
			continue
		}
		counts[it.BaseDomain]++
	}

	out := make([]models.DomainCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, models.DomainCount{Domain: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RiskDistribution always reports all five levels, best to worst.
func RiskDistribution(items []models.AnalyzedItem) []models.RiskCount {
	counts := make(map[models.RiskLevel]int, len(models.RiskLevels))
	for _, it := range items {
		counts[it.RiskLevel]++
	}
	out := make([]models.RiskCount, 0, len(models.RiskLevels))
	for _, level := range models.RiskLevels {
		out = append(out, models.RiskCount{Level: level, Count: counts[level]})
	}
	return out
}

func AgeDistribution(items []models.AnalyzedItem) []models.AgeBucket {
	buckets := []string{models.AgeBucketRecent, models.AgeBucketAging, models.AgeBucketStale, models.AgeBucketUnknown}
	counts := make(map[string]int, len(buckets))
	for _, it := range items {
		counts[ageBucket(it.PasswordAgeDays)]++
	}
	out := make([]models.AgeBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, models.AgeBucket{Bucket: b, Count: counts[b]})
	}
	return out
}

func ageBucket(days int) string {
	switch {
	case days < 0:
		return models.AgeBucketUnknown
	case days < 90:
		return models.AgeBucketRecent
	case days <= 365:
		return models.AgeBucketAging
	default:
		return models.AgeBucketStale
	}
}
