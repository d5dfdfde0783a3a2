package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"RucFilter/internal/domain"
)

const (
	configPathEnv      = "RUCFILTER_CONFIG"
	spreadsheetIDEnv   = "SPREADSHEET_ID"
	sheetNameEnv       = "SHEET_NAME"
	credentialsEnv     = "GOOGLE_CREDENTIALS_FILE"
	sheetBackendEnv    = "SHEET_BACKEND"
	workbookPathEnv    = "WORKBOOK_PATH"
	batchSizeEnv       = "BATCH_SIZE"
	batchDelayEnv      = "DELAY_BETWEEN_BATCHES"
	workersEnv         = "WORKERS"
	headlessEnv        = "HEADLESS"
	logLevelEnv        = "LOG_LEVEL"
	logFileEnv         = "LOG_FILE"
	entelURLEnv        = "ENTEL_URL"
	entelUserEnv       = "ENTEL_USERNAME"
	entelPasswordEnv   = "ENTEL_PASSWORD"
	segmentUserEnv     = "SEGMENTACION_USERNAME"
	segmentPassEnv     = "SEGMENTACION_PASSWORD"
	coverageURLEnv     = "FACTIBILIDAD_URL"
	coverageUserEnv    = "FACTIBILIDAD_USERNAME"
	coveragePassEnv    = "FACTIBILIDAD_PASSWORD"
	miapiTokenEnv      = "MIAPI_TOKEN"
	perudevsKeyEnv     = "PERUDEVS_KEY"
	databaseDSNEnv     = "DATABASE_DSN"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	bridgeAddrEnv      = "BRIDGE_ADDR"
	legacyClaroUserEnv = "CLARO_USERNAME"
	legacyClaroPassEnv = "CLARO_PASSWORD"
	legacyClaroURLEnv  = "CLARO_URL"
)

// Sheet backends.
const (
	BackendGoogle   = "google"
	BackendWorkbook = "workbook"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig          `yaml:"logging"`
	Sheet         SheetConfig            `yaml:"sheet"`
	Store         StoreConfig            `yaml:"store"`
	Browser       BrowserConfig          `yaml:"browser"`
	Session       SessionConfig          `yaml:"session"`
	Portals       PortalsConfig          `yaml:"portals"`
	Stages        map[string]StageConfig `yaml:"stages"`
	Run           RunConfig              `yaml:"run"`
	Bridge        BridgeConfig           `yaml:"bridge"`
	Database      DatabaseConfig         `yaml:"database"`
	Notifications NotificationConfig     `yaml:"notifications"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File, when set, receives a JSON copy of every record.
	File string `yaml:"file"`
}

// SheetConfig selects where the dataset lives.
type SheetConfig struct {
	Backend         string `yaml:"backend"`
	SpreadsheetID   string `yaml:"spreadsheetId"`
	Tab             string `yaml:"tab"`
	CredentialsFile string `yaml:"credentialsFile"`
	WorkbookPath    string `yaml:"workbookPath"`
}

// StoreConfig tunes batch writes against the sheet.
type StoreConfig struct {
	WriteAttempts   int           `yaml:"writeAttempts"`
	RetryBackoff    time.Duration `yaml:"retryBackoff"`
	RowDelay        time.Duration `yaml:"rowDelay"`
	RequestInterval time.Duration `yaml:"requestInterval"`
	ChunkRows       int           `yaml:"chunkRows"`
}

type BrowserConfig struct {
	Headless  bool          `yaml:"headless"`
	Bin       string        `yaml:"bin"`
	NoSandbox bool          `yaml:"noSandbox"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SessionConfig is the retry policy shared by every portal session.
type SessionConfig struct {
	Attempts   int           `yaml:"attempts"`
	RetryDelay time.Duration `yaml:"retryDelay"`
	Cooldown   time.Duration `yaml:"cooldown"`
}

// PortalsConfig groups endpoints and credentials per external portal.
type PortalsConfig struct {
	Sunat    SunatConfig    `yaml:"sunat"`
	Entel    CredentialSite `yaml:"entel"`
	Segment  CredentialSite `yaml:"segmentacion"`
	Osiptel  SunatConfig    `yaml:"osiptel"`
	Coverage CredentialSite `yaml:"cobertura"`
	DNI      DNIConfig      `yaml:"dni"`
}

type SunatConfig struct {
	URL string `yaml:"url"`
}

// CredentialSite is a portal behind a login form.
type CredentialSite struct {
	LoginURL string `yaml:"loginUrl"`
	HomeURL  string `yaml:"homeUrl"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type DNIConfig struct {
	AddressURL   string `yaml:"addressUrl"`
	AddressToken string `yaml:"addressToken"`
	PersonURL    string `yaml:"personUrl"`
	PersonKey    string `yaml:"personKey"`
}

// StageConfig sizes the worker pool of one stage.
type StageConfig struct {
	Workers    int           `yaml:"workers"`
	FlushEvery int           `yaml:"flushEvery"`
	Stagger    time.Duration `yaml:"stagger"`
	Pause      time.Duration `yaml:"pause"`
}

type RunConfig struct {
	// ConfirmAbove asks the operator before runs with more pending records.
	ConfirmAbove int `yaml:"confirmAbove"`
}

type BridgeConfig struct {
	Addr      string        `yaml:"addr"`
	KeepAlive time.Duration `yaml:"keepAlive"`
	WarmPoint string        `yaml:"warmPoint"`
}

// DatabaseConfig describes the optional Postgres run ledger.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	API      string `yaml:"api"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Stage returns the pool settings of s, falling back to its defaults.
func (c Config) Stage(s domain.Stage) StageConfig {
	sc, ok := c.Stages[string(s)]
	if !ok {
		return defaultStages()[string(s)]
	}
	return sc
}

// Load reads .env, the YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillStageDefaults()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Sheet.SpreadsheetID, spreadsheetIDEnv)
	setString(&c.Sheet.Tab, sheetNameEnv)
	setString(&c.Sheet.CredentialsFile, credentialsEnv)
	setString(&c.Sheet.Backend, sheetBackendEnv)
	setString(&c.Sheet.WorkbookPath, workbookPathEnv)

	setString(&c.Logging.Level, logLevelEnv)
	setString(&c.Logging.File, logFileEnv)

	if v, ok := lookupBool(headlessEnv); ok {
		c.Browser.Headless = v
	}
	if v := os.Getenv(batchDelayEnv); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			c.Store.RequestInterval = time.Duration(secs * float64(time.Second))
		} else {
			log.Printf("config: invalid %s=%q, ignoring", batchDelayEnv, v)
		}
	}
	if n, ok := lookupInt(workersEnv); ok {
		for name, sc := range c.Stages {
			if name == string(domain.StageLines) {
				// osiptel rate-limits per client; its pool is sized only through the file.
				continue
			}
			sc.Workers = n
			c.Stages[name] = sc
		}
	}
	if n, ok := lookupInt(batchSizeEnv); ok {
		for name, sc := range c.Stages {
			sc.FlushEvery = n
			c.Stages[name] = sc
		}
	}

	setString(&c.Portals.Entel.LoginURL, entelURLEnv)
	setString(&c.Portals.Entel.Username, entelUserEnv)
	setString(&c.Portals.Entel.Password, entelPasswordEnv)
	setString(&c.Portals.Segment.Username, segmentUserEnv)
	setString(&c.Portals.Segment.Password, segmentPassEnv)
	setString(&c.Portals.Coverage.HomeURL, legacyClaroURLEnv, coverageURLEnv)
	setString(&c.Portals.Coverage.Username, legacyClaroUserEnv, coverageUserEnv)
	setString(&c.Portals.Coverage.Password, legacyClaroPassEnv, coveragePassEnv)
	setString(&c.Portals.DNI.AddressToken, miapiTokenEnv)
	setString(&c.Portals.DNI.PersonKey, perudevsKeyEnv)

	setString(&c.Database.DSN, databaseDSNEnv)
	setString(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)
	setString(&c.Bridge.Addr, bridgeAddrEnv)
}

// fillStageDefaults completes stage entries that a config file left partial.
// A non-positive field takes the stage default.
func (c *Config) fillStageDefaults() {
	if c.Stages == nil {
		c.Stages = map[string]StageConfig{}
	}
	for name, def := range defaultStages() {
		sc, ok := c.Stages[name]
		if !ok {
			c.Stages[name] = def
			continue
		}
		if sc.Workers <= 0 {
			sc.Workers = def.Workers
		}
		if sc.FlushEvery <= 0 {
			sc.FlushEvery = def.FlushEvery
		}
		if sc.Stagger <= 0 {
			sc.Stagger = def.Stagger
		}
		if sc.Pause <= 0 {
			sc.Pause = def.Pause
		}
		c.Stages[name] = sc
	}
}

// setString assigns the last non-empty variable among keys.
func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s=%q, ignoring", key, v)
		return 0, false
	}
	return n, true
}

func lookupBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, ignoring", key, v)
		return false, false
	}
	return b, true
}

func defaultStages() map[string]StageConfig {
	return map[string]StageConfig{
		string(domain.StageRegistry): {Workers: 5, FlushEvery: 20},
		string(domain.StagePhone):    {Workers: 5, FlushEvery: 10, Stagger: 3 * time.Second, Pause: 2 * time.Second},
		string(domain.StageSegment):  {Workers: 5, FlushEvery: 100, Stagger: 3 * time.Second},
		string(domain.StageLines):    {Workers: 1, FlushEvery: 100, Stagger: 2 * time.Second},
		string(domain.StageCoverage): {Workers: 1, FlushEvery: 20, Stagger: 2 * time.Second},
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Sheet: SheetConfig{
			Backend:         BackendGoogle,
			Tab:             "Datos_Filtrados",
			CredentialsFile: "credentials.json",
			WorkbookPath:    "datos.xlsx",
		},
		Store: StoreConfig{
			WriteAttempts:   3,
			RetryBackoff:    5 * time.Second,
			RowDelay:        500 * time.Millisecond,
			RequestInterval: 200 * time.Millisecond,
			ChunkRows:       5000,
		},
		Browser: BrowserConfig{Headless: false, Timeout: 10 * time.Second},
		Session: SessionConfig{Attempts: 3, RetryDelay: 2 * time.Second, Cooldown: 10 * time.Second},
		Portals: PortalsConfig{
			Sunat: SunatConfig{URL: "https://e-consultaruc.sunat.gob.pe/cl-ti-itmrconsruc/FrameCriterioBusquedaWeb.jsp"},
			Entel: CredentialSite{
				LoginURL: "https://entel.insolutions.pe/entelid-portal/Account/Login",
				HomeURL:  "https://entel.insolutions.pe/entelid-portal/Operation",
			},
			Segment: CredentialSite{
				LoginURL: "https://transforma.my.site.com/s/login/",
				HomeURL:  "https://transforma.my.site.com/s/",
			},
			Osiptel:  SunatConfig{URL: "https://checatuslineas.osiptel.gob.pe"},
			Coverage: CredentialSite{HomeURL: "https://172.19.90.243/portalfactibilidad/public"},
			DNI: DNIConfig{
				AddressURL: "https://miapi.cloud/v1/dni",
				PersonURL:  "https://api.perudevs.com/api/v1/dni/complete",
			},
		},
		Stages: defaultStages(),
		Run:    RunConfig{ConfirmAbove: 5},
		Bridge: BridgeConfig{
			Addr:      "localhost:5555",
			KeepAlive: 4 * time.Minute,
			WarmPoint: "-12.046374, -77.042793",
		},
	}
}
