package config

import (
	"os"
	"strconv"
	"time"

	"ruiquan-inspection/internal/database"
)

// Config ruiquan-inspection（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Log struct {
		Level  string
		Format string
	}

	// Ledger 外部帳本（GAS web app）設定
	Ledger LedgerConfig

	// PartMaster 品番主檔來源
	PartMaster PartMasterConfig

	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	// CacheTTL 帳本讀取快取存活時間（短效，寫入後另行主動失效）
	CacheTTL time.Duration

	// DBEnabled 啟用帳本鏡像快照（報表/趨勢查詢用）
	DBEnabled bool
	Database  database.Config

	MQTT MQTTConfig
}

// LedgerConfig 帳本 web app 設定
type LedgerConfig struct {
	URL      string        // GAS exec URL
	FolderID string        // 照片上傳目的資料夾
	Timeout  time.Duration // 單次呼叫逾時
}

// PartMasterConfig 品番主檔（xlsx）設定
type PartMasterConfig struct {
	Path     string        // 主檔路徑
	Sheet    string        // 工作表名稱
	CacheTTL time.Duration // 主檔快取存活時間（可另行強制 refresh）
}

// MQTTConfig 現場 Andon 通知設定（NG / 變化點提交時發佈，預設停用）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Ledger.URL = getEnv("LEDGER_URL", "")
	cfg.Ledger.FolderID = getEnv("LEDGER_FOLDER_ID", "")
	cfg.Ledger.Timeout = time.Duration(parseInt(getEnv("LEDGER_TIMEOUT_SECONDS", "30"), 30)) * time.Second

	cfg.PartMaster.Path = getEnv("PARTS_XLSX_PATH", "parts_data.xlsx")
	cfg.PartMaster.Sheet = getEnv("PARTS_XLSX_SHEET", "parts")
	cfg.PartMaster.CacheTTL = time.Duration(parseInt(getEnv("PARTS_CACHE_SECONDS", "60"), 60)) * time.Second

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.CacheTTL = time.Duration(parseInt(getEnv("LEDGER_CACHE_SECONDS", "180"), 180)) * time.Second

	// 預設不開 DB：鏡像快照是報表加速用的選配
	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "ruiquan")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "ruiquan-inspection")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "ruiquan/andon")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
