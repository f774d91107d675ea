package breach

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

// ErrorCount is returned by CheckLeak when the lookup could not be completed.
// It is distinct from 0, which means the password was not found.
const ErrorCount = -1

var (
	ErrUnexpectedStatus = errors.New("unexpected status from breach range endpoint")
	ErrMalformedRange   = errors.New("malformed breach range line")
)

type LeakChecker interface {
	CheckLeak(ctx context.Context, password string) int
}

type ClientConfig struct {
	Endpoint  string
	UserAgent string
	Padding   bool
	Timeout   time.Duration
}

type Client struct {
	http    *resty.Client
	padding bool
	logger  *logrus.Logger
	metrics *utils.MetricsCollector
}

func NewClient(cfg ClientConfig, logger *logrus.Logger, metrics *utils.MetricsCollector) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "VaultLynx/1.0"
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetLogger(logger)
	return &Client{http: rc, padding: cfg.Padding, logger: logger, metrics: metrics}
}

// CheckLeak returns how often password appears in the breach corpus, 0 when it does not,
// or ErrorCount on any transport or parse failure. Only the 5-character hash prefix leaves
// the process.
func (c *Client) CheckLeak(ctx context.Context, password string) int {
	start := time.Now()
	count, err := c.lookup(ctx, password)
	c.metrics.ObserveSince(utils.MetricBreachDuration, start, nil)
	if err != nil {
		c.logger.WithError(err).Debug("breach range lookup failed")
		c.metrics.IncCounter(utils.MetricBreachRequests, 1, prometheus.Labels{"result": "error"})
		return ErrorCount
	}
	result := "clean"
	if count > 0 {
		result = "found"
	}
	c.metrics.IncCounter(utils.MetricBreachRequests, 1, prometheus.Labels{"result": result})
	return count
}

func (c *Client) lookup(ctx context.Context, password string) (int, error) {
	prefix, suffix := utils.RangeKey(password)

	req := c.http.R().SetContext(ctx)
	if c.padding {
		req.SetHeader("Add-Padding", "true")
	}
	resp, err := req.Get("/range/" + prefix)
	if err != nil {
		// url.Error carries the request URL, which embeds the hash prefix.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return 0, fmt.Errorf("range request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
	}
	return parseRange(resp.Body(), suffix)
}

func parseRange(body []byte, suffix string) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		hashSuffix, rawCount, ok := strings.Cut(line, ":")
		if !ok {
			return 0, ErrMalformedRange
		}
		if !strings.EqualFold(hashSuffix, suffix) {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(rawCount))
		if err != nil || count < 0 {
			return 0, ErrMalformedRange
		}
		return count, nil
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read range body: %w", err)
	}
	return 0, nil
}
