package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/ignite/internal/config"
	"github.com/felixgeelhaar/ignite/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit ignite configuration",
	Long: `Manage ignite configuration stored at ~/.ignite/config.yaml

Keys use dot notation and can also be set with IGNITE_* environment
variables, for example IGNITE_API_URL for api.url.

Examples:
  # View the effective configuration
  ignite config view

  # Get a specific value
  ignite config get api.url

  # Set a specific value
  ignite config set refresh.proactive_window 1m

  # List every key
  ignite config keys
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigView,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the config file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configKeysCmd)

	rootCmd.AddCommand(configCmd)
}

const redacted = "<redacted>"

// configPath returns --config or the default config file location.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		return path
	}
	return filepath.Join(config.DefaultHome(), "config.yaml")
}

func runConfigView(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	view := *cfg
	if view.Store.EncryptionKey != "" {
		view.Store.EncryptionKey = redacted
	}
	return out.Format(view)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !config.IsKnownKey(key) {
		return unknownKeyError(key)
	}

	v, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	value := fmt.Sprint(v.Get(key))
	if key == config.KeyStoreEncryptionKey && value != "" {
		value = redacted
	}
	return out.Format(value)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if !config.IsKnownKey(key) {
		return unknownKeyError(key)
	}

	path := configPath(cmd)
	previous, doc, err := readConfigDoc(path)
	if err != nil {
		return errors.NewConfigError("cannot read the config file", err)
	}
	setNestedValue(doc, key, value)

	if err := writeConfigDoc(path, doc); err != nil {
		return errors.NewConfigError("cannot write the config file", err)
	}

	// Reject values that make the configuration invalid.
	if _, _, err := loadConfig(cmd); err != nil {
		if restoreErr := restoreConfigDoc(path, previous); restoreErr != nil {
			return errors.NewConfigError("cannot restore the config file", restoreErr)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s\n", key, value)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), configPath(cmd))
	return nil
}

func runConfigKeys(cmd *cobra.Command, args []string) error {
	out, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	return out.Format(config.Keys())
}

func unknownKeyError(key string) error {
	return errors.NewInvalidInputError(fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("List the keys with 'ignite config keys'")
}

// readConfigDoc loads the config file as a generic document. A missing file
// yields an empty document and nil previous contents.
func readConfigDoc(path string) ([]byte, map[string]interface{}, error) {
	doc := map[string]interface{}{}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, doc, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return data, doc, nil
}

func writeConfigDoc(path string, doc map[string]interface{}) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func restoreConfigDoc(path string, previous []byte) error {
	if previous == nil {
		return os.Remove(path)
	}
	return os.WriteFile(path, previous, 0o600)
}

// setNestedValue sets a dot-notation key in doc, creating sections as needed.
func setNestedValue(doc map[string]interface{}, key, value string) {
	parts := strings.Split(key, ".")
	section := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := section[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			section[part] = next
		}
		section = next
	}
	section[parts[len(parts)-1]] = value
}
