package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env       string // DEV (local; default), TEST, QA, PROD
		Build     string
		Debug     bool
		TestMode  bool
		AppName   string
		SecretKey string
		WorkDir   string
		Timezone  string

		FrontendBaseURL string
		RollbarToken    string

		Server   ServerConfig
		Database DatabaseConfig
		Mail     MailConfig
		Storage  StorageConfig
		Cache    CacheConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	MailConfig struct {
		Backend          string // console | sendgrid | ses
		DefaultFromEmail string
		StudentDomain    string // students are mailed at <identifier>@<StudentDomain>
		SendgridAPIKey   string
		SESRegion        string
	}

	StorageConfig struct {
		Backend  string // disk | s3
		Dir      string
		S3Bucket string
		S3Region string
	}

	CacheConfig struct {
		TTL time.Duration
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

// DefaultFromEmail parses Mail.DefaultFromEmail, falling back to a bare noreply address.
func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.Mail.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

// Location loads the school time zone used for deadline arithmetic.
func (conf *Config) Location() *time.Location {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		log.Printf("config: loading location %q: %v; falling back to UTC", conf.Timezone, err)
		return time.UTC
	}
	return loc
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Absento")
	v.SetDefault("secretKey", "x9v!c@3+pl2-ab$q8(zm4#e0w*k7&hr1uy6_tg5)dn=sj%of")
	v.SetDefault("timezone", "Europe/Paris")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbUser", "absento")
	v.SetDefault("dbPassword", "absento")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbName", "absento")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("mailBackend", "console")
	v.SetDefault("defaultFromEmail", "Absento <noreply@localhost>")
	v.SetDefault("studentDomain", "etu.localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("sesRegion", "eu-west-3")

	v.SetDefault("storageBackend", "disk")
	v.SetDefault("storageDir", filepath.Join(os.TempDir(), "absento-proofs"))
	v.SetDefault("s3Bucket", "")
	v.SetDefault("s3Region", "eu-west-3")

	v.SetDefault("cacheTTL", 2*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		WorkDir:         workDir,
		Timezone:        v.GetString("timezone"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			Name:          v.GetString("dbName"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Mail: MailConfig{
			Backend:          strings.ToLower(v.GetString("mailBackend")),
			DefaultFromEmail: v.GetString("defaultFromEmail"),
			StudentDomain:    v.GetString("studentDomain"),
			SendgridAPIKey:   v.GetString("sendgridApiKey"),
			SESRegion:        v.GetString("sesRegion"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(v.GetString("storageBackend")),
			Dir:      v.GetString("storageDir"),
			S3Bucket: v.GetString("s3Bucket"),
			S3Region: v.GetString("s3Region"),
		},
		Cache: CacheConfig{
			TTL: v.GetDuration("cacheTTL"),
		},
	}
}
