package commands

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

func NewConfigureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Manage VaultLynx configuration",
		Long: `Initialize, inspect and edit the VaultLynx configuration file
(default $HOME/.vaultlynx/config.yaml, or the file given with --config).`,
	}

	cmd.AddCommand(newConfigureInitCommand())
	cmd.AddCommand(newConfigureShowCommand())
	cmd.AddCommand(newConfigureSetCommand())
	cmd.AddCommand(newConfigureGetCommand())
	return cmd
}

func newConfigureInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE:  runConfigureInit,
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file without asking")
	return cmd
}

func newConfigureShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  `Show the configuration after defaults, the config file and VAULTLYNX_* overrides are applied.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigureShow,
	}
}

func newConfigureSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a value in the configuration file. Keys are dotted (e.g. "breach.batch_size").
Values are parsed as:
- booleans: true/false
- integers/floats: 10, 3.14
- durations (for keys containing timeout|stagger|pause): "30s", "200ms"
- string lists: "a,b,c" -> ["a","b","c"]
The file is only written if the result still validates.`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigureSet,
	}
}

func newConfigureGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigureGet,
	}
}

func runConfigureInit(cmd *cobra.Command, args []string) error {
	path, err := defaultConfigPath()
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		logrus.Warnf("Configuration file already exists: %s", path)
		ok, ierr := confirmOverwrite()
		if ierr != nil {
			return ierr
		}
		if !ok {
			logrus.Info("Configuration initialization cancelled")
			return nil
		}
	}

	if err := models.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	logrus.Infof("Configuration initialized: %s", path)
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GLOBAL:\t")
	fmt.Fprintf(w, "  Log Level:\t%s\n", cfg.Global.LogLevel)
	fmt.Fprintf(w, "  Log Format:\t%s\n", cfg.Global.LogFormat)
	fmt.Fprintf(w, "  Log File:\t%s\n", cfg.Global.LogFile)
	fmt.Fprintf(w, "  Output Directory:\t%s\n", cfg.Global.OutputDir)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "ANALYSIS:\t")
	fmt.Fprintf(w, "  Use Item Context:\t%t\n", cfg.Analysis.UseItemContext)
	fmt.Fprintf(w, "  Include Items:\t%t\n", cfg.Analysis.IncludeItems)
	fmt.Fprintf(w, "  Top Domains:\t%d\n", cfg.Analysis.TopDomains)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "BREACH:\t")
	fmt.Fprintf(w, "  Enabled:\t%t\n", cfg.Breach.Enabled)
	fmt.Fprintf(w, "  Endpoint:\t%s\n", cfg.Breach.Endpoint)
	fmt.Fprintf(w, "  Padding:\t%t\n", cfg.Breach.Padding)
	fmt.Fprintf(w, "  Batch Size:\t%d\n", cfg.Breach.BatchSize)
	fmt.Fprintf(w, "  Stagger:\t%s\n", cfg.Breach.Stagger)
	fmt.Fprintf(w, "  Batch Pause:\t%s\n", cfg.Breach.BatchPause)
	fmt.Fprintf(w, "  Timeout:\t%s\n", cfg.Breach.Timeout)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "API:\t")
	fmt.Fprintf(w, "  Address:\t%s\n", cfg.API.Address)
	fmt.Fprintf(w, "  Allowed Origins:\t%s\n", strings.Join(cfg.API.AllowedOrigins, ", "))
	fmt.Fprintf(w, "  Max Upload Bytes:\t%d\n", cfg.API.MaxUploadBytes)
	fmt.Fprintf(w, "  Include Secrets:\t%t\n", cfg.API.IncludeSecrets)
	fmt.Fprintf(w, "  Metrics:\t%t\n", cfg.Metrics.Enabled)
	return w.Flush()
}

func runConfigureSet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	path, err := defaultConfigPath()
	if err != nil {
		return err
	}

	doc, err := loadConfigMap(path)
	if err != nil {
		return err
	}
	val := parseValueForKey(key, args[1])
	setNested(doc, strings.Split(key, "."), val)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	cfg := models.DefaultConfig()
	if err := yaml.Unmarshal(out, cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	logrus.Infof("Set %s = %v in %s", key, val, path)
	return nil
}

func runConfigureGet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Round-trip through YAML so keys match the file layout.
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}

	val, ok := getNested(doc, strings.Split(key, "."))
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	fmt.Printf("%s = %v\n", key, val)
	return nil
}

// loadConfigMap reads path as a generic document, starting from the defaults when
// the file does not exist yet.
func loadConfigMap(path string) (map[string]interface{}, error) {
	var raw []byte
	if b, err := os.ReadFile(path); err == nil {
		raw = b
	} else if os.IsNotExist(err) {
		if raw, err = yaml.Marshal(models.DefaultConfig()); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc, nil
}

func setNested(dst map[string]interface{}, keys []string, val interface{}) {
	if len(keys) == 0 {
		return
	}
	if len(keys) == 1 {
		dst[keys[0]] = val
		return
	}
	k := keys[0]
	child, ok := dst[k].(map[string]interface{})
	if !ok {
		child = map[string]interface{}{}
	}
	setNested(child, keys[1:], val)
	dst[k] = child
}

func getNested(src map[string]interface{}, keys []string) (interface{}, bool) {
	var cur interface{} = src
	for _, k := range keys {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func parseValueForKey(key, s string) interface{} {
	trim := strings.TrimSpace(s)

	if strings.Contains(trim, ",") {
		parts := strings.Split(trim, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		return out
	}

	if b, err := strconv.ParseBool(trim); err == nil {
		return b
	}

	if i, err := strconv.Atoi(trim); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(trim, 64); err == nil {
		return f
	}

	if containsAny(strings.ToLower(key), []string{"timeout", "stagger", "pause"}) {
		if d, err := time.ParseDuration(trim); err == nil {
			return d.String()
		}
	}
	return trim
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func confirmOverwrite() (bool, error) {
	fmt.Print("Configuration file already exists. Overwrite? (y/N): ")
	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	resp = strings.TrimSpace(resp)
	return resp == "y" || resp == "Y", nil
}
