package config

import (
	_ "embed"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"
)

//go:embed default_config.toml
var DefaultConfig string

const appName = "kaiju"

type Config struct {
	APIHost            string                       `toml:"api_host"`
	APIParallelism     int                          `toml:"api_parallelism"`
	APITimeoutSeconds  int                          `toml:"api_timeout_seconds"`
	Email              string                       `toml:"email"`
	Token              string                       `toml:"token"`
	ServerPort         int                          `toml:"server_port"`
	ServerIP           string                       `toml:"server_ip"`
	HTTPCacheMegabytes int                          `toml:"http_cache_megabytes"`
	IssueFields        []IssueFieldConfig           `toml:"issue_fields"`
	ValueBag           map[string]map[string]string `toml:"value_bag"`
	Transitions        []TransitionConfig           `toml:"transitions"`
	Boards             map[string]BoardConfig       `toml:"board"`
	Cache              CacheConfig                  `toml:"cache"`
}

// IssueFieldConfig describes one field of the markdown issue format. Its possible values are
// either listed in Values or taken from the keys of the value bag named by ValuesFrom.
type IssueFieldConfig struct {
	Name         string   `toml:"name"`
	APIField     string   `toml:"api_field"`
	Values       []string `toml:"values"`
	ValuesFrom   string   `toml:"values_from"`
	DefaultValue *string  `toml:"default_value"`
}

type TransitionConfig struct {
	ID         string `toml:"id"`
	Name       string `toml:"name"`
	ToStatus   string `toml:"to_status"`
	ToStatusID string `toml:"to_status_id"`
}

type BoardConfig struct {
	BoardID                  string   `toml:"board_id"`
	CardAvatars              []string `toml:"card_avatars"`
	ShowFirstColumn          bool     `toml:"show_first_column"`
	FilterLastColumnResolved *string  `toml:"filter_last_column_resolved"`
	EpicShortName            string   `toml:"epic_short_name"`
	EpicColor                *string  `toml:"epic_color"`
	Flag                     *string  `toml:"flag"`
}

type CacheConfig struct {
	TTLBoardConfigurationSeconds int `toml:"ttl_board_configuration_seconds"`
	TTLBoardIssuesSeconds        int `toml:"ttl_board_issues_seconds"`
	TTLIssueSeconds              int `toml:"ttl_issue_seconds"`
	TTLEpicSeconds               int `toml:"ttl_epic_seconds"`
	TTLDevelopmentInfoSeconds    int `toml:"ttl_development_info_seconds"`
}

func (c CacheConfig) BoardConfigurationTTL() time.Duration {
	return seconds(c.TTLBoardConfigurationSeconds)
}

func (c CacheConfig) BoardIssuesTTL() time.Duration {
	return seconds(c.TTLBoardIssuesSeconds)
}

func (c CacheConfig) IssueTTL() time.Duration {
	return seconds(c.TTLIssueSeconds)
}

func (c CacheConfig) EpicTTL() time.Duration {
	return seconds(c.TTLEpicSeconds)
}

func (c CacheConfig) DevelopmentInfoTTL() time.Duration {
	return seconds(c.TTLDevelopmentInfoSeconds)
}

func (c *Config) APITimeout() time.Duration {
	return seconds(c.APITimeoutSeconds)
}

// Board returns the local configuration of the board with the given name.
func (c *Config) Board(name string) (BoardConfig, error) {
	board, ok := c.Boards[name]
	if !ok {
		names := make([]string, 0, len(c.Boards))
		for n := range c.Boards {
			names = append(names, n)
		}
		sort.Strings(names)
		msg := fmt.Sprintf("Board '%s' not found in the config. Valid names are: %s", name, strings.Join(names, ", "))
		if matches := fuzzy.Find(name, names); len(matches) > 0 {
			msg += fmt.Sprintf(". Did you mean '%s'?", matches[0].Str)
		}
		return BoardConfig{}, errors.New(msg)
	}
	return board, nil
}

// IssueField returns the issue field with the given markdown name.
func (c *Config) IssueField(name string) (IssueFieldConfig, bool) {
	for _, field := range c.IssueFields {
		if field.Name == name {
			return field, true
		}
	}
	return IssueFieldConfig{}, false
}

// Path returns where the config file lives: <user config dir>/kaiju/config.toml.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrapf(err, "Could not determine local configuration directory")
	}
	return filepath.Join(dir, appName, "config.toml"), nil
}

// CacheDir returns the directory kaiju may use for scratch files.
func CacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrapf(err, "Could not determine local cache directory")
	}
	return filepath.Join(dir, appName), nil
}

// ReadContents returns the raw config file, or the default config when there is none.
func ReadContents(path string) (string, error) {
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig, nil
	} else if err != nil {
		return "", errors.Wrapf(err, "Could not read config file")
	}
	return string(data), nil
}

// WriteContents saves contents as the config file. Invalid contents are still written, so
// that the user does not lose their edits, but a warning is logged.
func WriteContents(path, contents string) error {
	logrus.WithField("contents", contents).Debug("Will save config")

	if _, err := Parse(contents); err != nil {
		logrus.WithError(err).Warn("The new contents of the config file seem invalid")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "Could not create config directory")
	}
	logrus.WithField("path", path).Info("Will update config file")
	if err := ioutil.WriteFile(path, []byte(contents), 0o600); err != nil {
		return errors.Wrapf(err, "Could not write config file")
	}
	return nil
}

// Parse decodes and validates TOML config contents.
func Parse(contents string) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(contents, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logrus.WithField("keys", undecoded).Warn("Unknown keys in config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	contents, err := ReadContents(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(contents)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not load %s", path)
	}
	logrus.WithField("path", path).Debug("Loaded config")
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIHost == "" {
		return errors.Errorf("api_host must not be empty")
	}
	c.APIHost = strings.TrimSuffix(c.APIHost, "/")
	if c.APIParallelism < 0 {
		return errors.Errorf("api_parallelism must not be negative")
	}
	for _, field := range c.IssueFields {
		if field.Name == "" || field.APIField == "" {
			return errors.Errorf("Every issue field needs a name and an api_field")
		}
		if field.ValuesFrom != "" && len(field.Values) > 0 {
			return errors.Errorf("Issue field %q cannot have both values and values_from", field.Name)
		}
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
