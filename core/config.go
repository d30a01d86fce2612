package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		SendgridAPIKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		defaultFromEmail          string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Push     PushConfig
		Training TrainingConfig
		Events   EventsConfig
	}

	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugAddr                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool // nothing is persisted
	}

	StorageConfig struct {
		Driver        string // local | s3
		LocalDir      string
		PublicBaseURL string
		S3Bucket      string
		S3Region      string
		S3Endpoint    string
	}

	PushConfig struct {
		Subject string
	}

	TrainingConfig struct {
		SaveAttempts       uint
		SaveInitialBackoff time.Duration
		BackupDir          string
	}

	EventsConfig struct {
		NATSURL string
		Prefix  string
	}
)

func (dbc DatabaseConfig) Address() string {
	return dbc.Host + ":" + dbc.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig reads the configuration from the environment.
// ENV selects the env prefix (DEV by default) and the optional dotenv file config/.env.<env>.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Pure Life Center")
	conf.SetDefault("secretKey", "u2#v!rl0-n5k$wq7=pz&e9o)4yb(c+h1jx^m*t3ag6dfs8")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "Pure Life Center <noreply@localhost>")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.addr", ":8000")
	conf.SetDefault("server.debugAddr", ":4000")
	conf.SetDefault("server.shutdownTimeout", 10*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "purelife")
	conf.SetDefault("database.user", "purelife")
	conf.SetDefault("database.password", "purelife")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.inMemory", false)

	conf.SetDefault("storage.driver", "local")
	conf.SetDefault("storage.localDir", "media")
	conf.SetDefault("storage.publicBaseURL", "http://localhost:8000/media")
	conf.SetDefault("storage.s3Bucket", "")
	conf.SetDefault("storage.s3Region", "us-east-1")
	conf.SetDefault("storage.s3Endpoint", "")

	conf.SetDefault("push.subject", "mailto:support@localhost")

	conf.SetDefault("training.saveAttempts", 3)
	conf.SetDefault("training.saveInitialBackoff", 500*time.Millisecond)
	conf.SetDefault("training.backupDir", filepath.Join(os.TempDir(), "purelife-progress"))

	conf.SetDefault("events.natsURL", "")
	conf.SetDefault("events.prefix", "plc")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     conf.GetString("build"),
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("testMode"),
		AppName:                   conf.GetString("appName"),
		SecretKey:                 conf.GetString("secretKey"),
		FrontendBaseURL:           conf.GetString("frontendBaseURL"),
		SendgridAPIKey:            conf.GetString("sendgridApiKey"),
		RollbarToken:              conf.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          conf.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			Addr:                      conf.GetString("server.addr"),
			DebugAddr:                 conf.GetString("server.debugAddr"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
			InMemory:      conf.GetBool("database.inMemory"),
		},
		Storage: StorageConfig{
			Driver:        conf.GetString("storage.driver"),
			LocalDir:      conf.GetString("storage.localDir"),
			PublicBaseURL: conf.GetString("storage.publicBaseURL"),
			S3Bucket:      conf.GetString("storage.s3Bucket"),
			S3Region:      conf.GetString("storage.s3Region"),
			S3Endpoint:    conf.GetString("storage.s3Endpoint"),
		},
		Push: PushConfig{
			Subject: conf.GetString("push.subject"),
		},
		Training: TrainingConfig{
			SaveAttempts:       conf.GetUint("training.saveAttempts"),
			SaveInitialBackoff: conf.GetDuration("training.saveInitialBackoff"),
			BackupDir:          conf.GetString("training.backupDir"),
		},
		Events: EventsConfig{
			NATSURL: conf.GetString("events.natsURL"),
			Prefix:  conf.GetString("events.prefix"),
		},
	}
}

// NewTestConfig returns a config suitable for tests: no dotenv, no debug output, fast retries.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   "Pure Life Center",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		defaultFromEmail:          "noreply@localhost",
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Storage:  StorageConfig{Driver: "local", PublicBaseURL: "http://localhost/media"},
		Push:     PushConfig{Subject: "mailto:test@localhost"},
		Training: TrainingConfig{SaveAttempts: 3},
		Events:   EventsConfig{Prefix: "plc"},
	}
}

func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	return filepath.Join(wd, "config")
}
