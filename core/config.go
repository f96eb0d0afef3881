package core

import (
	"fmt"
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
		Env              string
		Debug            bool
		TestMode         bool
		AppName          string
		Build            string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server     ServerConfig
		Database   DatabaseConfig
		Roster     RosterConfig
		Session    SessionConfig
		Attendance AttendanceConfig
	}

	ServerConfig struct {
		Address            string
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		SignInURL          string
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RosterConfig struct {
		Source   string // database | memory | http
		URL      string
		Token    string
		SeedFile string
		Timeout  time.Duration
	}

	SessionConfig struct {
		Store         string // memory | redis
		IdleTTL       time.Duration
		SweepSpec     string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}

	AttendanceConfig struct {
		Timezone         string
		ReferenceTime    time.Time // frozen clock when set
		ExportDir        string
		ReportRecipients []mail.Address
	}
)

const (
	RosterSourceDatabase = "database"
	RosterSourceMemory   = "memory"
	RosterSourceHTTP     = "http"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func (db DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", db.Host, db.Port)
}

// NewConfig loads the configuration from the environment.
// ENV selects the environment (DEV by default) and doubles as the env var prefix, eg. DEV_SECRETKEY.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Senbet")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "s3nb3t-d3v-k3y+r0ll-c@ll!k8$x2(h)#*c2(#yg4")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.signInURL", "/auth/signin")
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "senbet")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("roster.source", RosterSourceDatabase)
	v.SetDefault("roster.url", "")
	v.SetDefault("roster.token", "")
	v.SetDefault("roster.seedFile", "")
	v.SetDefault("roster.timeout", 10*time.Second)

	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("session.idleTTL", 12*time.Hour)
	v.SetDefault("session.sweepSpec", "@every 10m")
	v.SetDefault("session.redisAddr", "localhost:6379")
	v.SetDefault("session.redisPassword", "")
	v.SetDefault("session.redisDB", 0)

	v.SetDefault("attendance.timezone", "Africa/Addis_Ababa")
	v.SetDefault("attendance.referenceTime", "")
	v.SetDefault("attendance.exportDir", "")
	v.SetDefault("attendance.reportRecipients", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			SignInURL:          v.GetString("server.signInURL"),
			DisableReqLogs:     v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Roster: RosterConfig{
			Source:   strings.ToLower(v.GetString("roster.source")),
			URL:      v.GetString("roster.url"),
			Token:    v.GetString("roster.token"),
			SeedFile: v.GetString("roster.seedFile"),
			Timeout:  v.GetDuration("roster.timeout"),
		},
		Session: SessionConfig{
			Store:         strings.ToLower(v.GetString("session.store")),
			IdleTTL:       v.GetDuration("session.idleTTL"),
			SweepSpec:     v.GetString("session.sweepSpec"),
			RedisAddr:     v.GetString("session.redisAddr"),
			RedisPassword: v.GetString("session.redisPassword"),
			RedisDB:       v.GetInt("session.redisDB"),
		},
		Attendance: AttendanceConfig{
			Timezone:  v.GetString("attendance.timezone"),
			ExportDir: v.GetString("attendance.exportDir"),
		},
	}

	if ref := v.GetString("attendance.referenceTime"); ref != "" {
		t, err := time.Parse(time.RFC3339, ref)
		if err != nil {
			log.Fatalf("config.attendance.referenceTime(%s): %v", ref, err)
		}
		conf.Attendance.ReferenceTime = t
	}
	if rcpts := v.GetString("attendance.reportRecipients"); rcpts != "" {
		addrs, err := mail.ParseAddressList(rcpts)
		if err != nil {
			log.Fatalf("config.attendance.reportRecipients(%s): %v", rcpts, err)
		}
		for _, a := range addrs {
			conf.Attendance.ReportRecipients = append(conf.Attendance.ReportRecipients, *a)
		}
	}
	return conf
}

// NewTestConfig returns a Config suitable for tests: no env lookups, frozen defaults.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Senbet",
		Build:            "test",
		SecretKey:        "secret",
		defaultFromEmail: "noreply@localhost",
		Server: ServerConfig{
			Host:               "localhost",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: 10 * time.Minute,
			SignInURL:          "/auth/signin",
			DisableReqLogs:     true,
		},
		Roster:  RosterConfig{Source: RosterSourceMemory, Timeout: time.Second},
		Session: SessionConfig{Store: SessionStoreMemory, IdleTTL: time.Hour, SweepSpec: "@every 1m"},
		Attendance: AttendanceConfig{
			Timezone: "Africa/Addis_Ababa",
		},
	}
}
