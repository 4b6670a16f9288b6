package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vrischmann/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/R167/ipwatch/catalog"
	"github.com/R167/ipwatch/common"
	"github.com/R167/ipwatch/internal/security"
)

const (
	DefaultSubject       = "My IP Has Changed!"
	DefaultSMTPPort      = 25
	DefaultSurveyWorkers = 1
)

// fileConfig mirrors the YAML document.
type fileConfig struct {
	Sender             string        `yaml:"sender"`
	SenderEmail        string        `yaml:"sender_email"`
	SenderUsername     string        `yaml:"sender_username"`
	SenderPassword     string        `yaml:"sender_password"`
	Receiver           []string      `yaml:"receiver"`
	ReceiverEmail      []string      `yaml:"receiver_email"`
	SubjectLine        string        `yaml:"subject_line"`
	Machine            string        `yaml:"machine"`
	SMTPAddr           string        `yaml:"smtp_addr"`
	SaveIPPath         string        `yaml:"save_ip_path"`
	TryCount           int           `yaml:"try_count"`
	IPBlacklist        []string      `yaml:"ip_blacklist"`
	ServerListURL      string        `yaml:"server_list_url"`
	ServerCachePath    string        `yaml:"server_cache_path"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	InsecureSkipVerify *bool         `yaml:"insecure_skip_verify"`
	SurveyWorkers      int           `yaml:"survey_workers"`
	LogLevel           string        `yaml:"log_level"`
}

// envOverrides are applied on top of the file when set.
type envOverrides struct {
	SenderPassword  string `envconfig:"IPWATCH_SENDER_PASSWORD,optional"`
	SaveIPPath      string `envconfig:"IPWATCH_SAVE_IP_PATH,optional"`
	ServerCachePath string `envconfig:"IPWATCH_SERVER_CACHE_PATH,optional"`
	TryCount        int    `envconfig:"IPWATCH_TRY_COUNT,optional"`
	LogLevel        string `envconfig:"IPWATCH_LOG_LEVEL,optional"`
}

// Config is built once by Load or Parse and not modified afterwards. Slice
// accessors return copies.
type Config struct {
	Sender         string
	SenderEmail    string
	SenderUsername string
	SenderPassword string
	SubjectLine    string
	Machine        string

	SMTPAddr string
	SMTPHost string
	SMTPPort int
	UseTLS   bool

	SaveIPPath         string
	TryCount           int
	ServerListURL      string
	ServerCachePath    string
	FetchTimeout       time.Duration
	InsecureSkipVerify bool
	SurveyWorkers      int
	LogLevel           string

	receiver      []string
	receiverEmail []string
	blacklist     []string
}

// Load reads the file at path, applies environment overrides and validates
// the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	fc, err := decode(data)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&fc); err != nil {
		return Config{}, err
	}
	return build(fc)
}

// Parse validates a YAML document without consulting the environment.
func Parse(data []byte) (Config, error) {
	fc, err := decode(data)
	if err != nil {
		return Config{}, err
	}
	return build(fc)
}

func decode(data []byte) (fileConfig, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

func applyEnv(fc *fileConfig) error {
	var env envOverrides
	if err := envconfig.Init(&env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if env.SenderPassword != "" {
		fc.SenderPassword = env.SenderPassword
	}
	if env.SaveIPPath != "" {
		fc.SaveIPPath = env.SaveIPPath
	}
	if env.ServerCachePath != "" {
		fc.ServerCachePath = env.ServerCachePath
	}
	if env.TryCount != 0 {
		fc.TryCount = env.TryCount
	}
	if env.LogLevel != "" {
		fc.LogLevel = env.LogLevel
	}
	return nil
}

func missing(key string) error {
	return fmt.Errorf("'%s' value not present in config file", key)
}

func build(fc fileConfig) (Config, error) {
	if fc.SaveIPPath == "" {
		return Config{}, missing("save_ip_path")
	}
	if err := security.ValidateTryCount(fc.TryCount); err != nil {
		return Config{}, err
	}
	if err := security.ValidateBlacklist(fc.IPBlacklist); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Sender:             fc.Sender,
		SenderEmail:        fc.SenderEmail,
		SenderUsername:     fc.SenderUsername,
		SenderPassword:     fc.SenderPassword,
		SubjectLine:        fc.SubjectLine,
		Machine:            fc.Machine,
		SMTPAddr:           fc.SMTPAddr,
		SaveIPPath:         fc.SaveIPPath,
		TryCount:           fc.TryCount,
		ServerListURL:      fc.ServerListURL,
		ServerCachePath:    fc.ServerCachePath,
		FetchTimeout:       fc.FetchTimeout,
		InsecureSkipVerify: true,
		SurveyWorkers:      fc.SurveyWorkers,
		LogLevel:           strings.ToLower(fc.LogLevel),
		receiver:           append([]string(nil), fc.Receiver...),
		receiverEmail:      append([]string(nil), fc.ReceiverEmail...),
		blacklist:          append([]string(nil), fc.IPBlacklist...),
	}

	if cfg.SMTPAddr != "" {
		for _, f := range []struct{ key, val string }{
			{"sender_email", cfg.SenderEmail},
			{"sender_username", cfg.SenderUsername},
			{"sender_password", cfg.SenderPassword},
		} {
			if f.val == "" {
				return Config{}, missing(f.key)
			}
		}
		if len(cfg.receiverEmail) == 0 {
			return Config{}, missing("receiver_email")
		}
		host, port, err := SplitSMTPAddr(cfg.SMTPAddr)
		if err != nil {
			return Config{}, err
		}
		cfg.SMTPHost, cfg.SMTPPort = host, port
		cfg.UseTLS = port != DefaultSMTPPort
	}

	if cfg.Sender == "" {
		cfg.Sender = cfg.SenderEmail
	}
	if cfg.Machine == "" {
		cfg.Machine, _ = os.Hostname()
	}
	if cfg.SubjectLine == "" {
		cfg.SubjectLine = DefaultSubject
	}
	if len(cfg.receiver) != len(cfg.receiverEmail) {
		cfg.receiver = append([]string(nil), cfg.receiverEmail...)
	}
	if cfg.ServerListURL == "" {
		cfg.ServerListURL = catalog.DefaultListURL
	}
	if cfg.ServerCachePath == "" {
		cfg.ServerCachePath = catalog.DefaultCachePath
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = common.FetchTimeout
	}
	if fc.InsecureSkipVerify != nil {
		cfg.InsecureSkipVerify = *fc.InsecureSkipVerify
	}
	if cfg.SurveyWorkers <= 0 {
		cfg.SurveyWorkers = DefaultSurveyWorkers
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

// SplitSMTPAddr splits "host[:port]". A missing port means 25.
func SplitSMTPAddr(addr string) (string, int, error) {
	host, portStr, hasPort := strings.Cut(addr, ":")
	if host == "" {
		return "", 0, errors.New("smtp_addr not set correctly in config")
	}
	if !hasPort {
		return host, DefaultSMTPPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 || strings.ContainsAny(portStr, "+-") {
		return "", 0, fmt.Errorf("smtp_addr not set correctly in config: %q", addr)
	}
	return host, port, nil
}

// MailEnabled reports whether change reports should be e-mailed.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

func (c Config) From() mail.Address {
	return mail.Address{Name: c.Sender, Address: c.SenderEmail}
}

// Recipients pairs receiver names with addresses.
func (c Config) Recipients() []mail.Address {
	out := make([]mail.Address, len(c.receiverEmail))
	for i, addr := range c.receiverEmail {
		out[i] = mail.Address{Name: c.receiver[i], Address: addr}
	}
	return out
}

func (c Config) Blacklist() common.Blacklist {
	return common.NewBlacklist(c.blacklist...)
}

// String lists the set values, one per line, with the password masked.
func (c Config) String() string {
	var lines []string
	write := func(key, val string) {
		if val != "" {
			lines = append(lines, fmt.Sprintf("%-16s : %s", key, val))
		}
	}
	password := ""
	if c.SenderPassword != "" {
		password = "********"
	}
	write("sender", c.Sender)
	write("sender_email", c.SenderEmail)
	write("sender_username", c.SenderUsername)
	write("sender_password", password)
	write("receiver", strings.Join(c.receiver, ","))
	write("receiver_email", strings.Join(c.receiverEmail, ","))
	write("subject_line", c.SubjectLine)
	write("machine", c.Machine)
	write("smtp_addr", c.SMTPAddr)
	write("save_ip_path", c.SaveIPPath)
	write("try_count", strconv.Itoa(c.TryCount))
	write("ip_blacklist", strings.Join(c.blacklist, ","))
	write("server_list_url", c.ServerListURL)
	write("server_cache", c.ServerCachePath)
	write("fetch_timeout", c.FetchTimeout.String())
	write("insecure_tls", strconv.FormatBool(c.InsecureSkipVerify))
	write("survey_workers", strconv.Itoa(c.SurveyWorkers))
	write("log_level", c.LogLevel)
	return strings.Join(lines, "\n")
}
