package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/formwalk/formwalk/internal/api"
	"github.com/formwalk/formwalk/internal/config"
	"github.com/formwalk/formwalk/internal/identity"
	"github.com/formwalk/formwalk/internal/middleware"
	"github.com/formwalk/formwalk/internal/schema"
	"github.com/formwalk/formwalk/internal/storage"
	"github.com/formwalk/formwalk/internal/utils"
)

func main() {
	// .env is optional; real env always wins over it.
	_ = godotenv.Load()

	if logFile := os.Getenv("FORMWALK_LOG_FILE"); logFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	addr := utils.SafeEnv("FORMWALK_ADDR", ":8080")
	commit := os.Getenv("FORMWALK_COMMIT")
	buildTime := os.Getenv("FORMWALK_BUILD_TIME")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "Formwalk API",
			"commit":     commit,
			"build_time": buildTime,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	// A broken config never serves a half-working questionnaire: every API
	// route answers with the configuration error until it is fixed.
	cfg, warnings, cfgErr := loadConfig()
	for _, warning := range warnings {
		log.Printf("config: %s", warning)
	}
	if cfgErr != nil {
		log.Printf("config error: %v", cfgErr)
		mux.Handle("/api/", configErrorHandler(cfgErr))
		mux.Handle("/", configErrorHandler(cfgErr))
	} else {
		store, err := openStore()
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		resolver := identity.NewResolver(
			cfg.Settings.OIDCIdentity,
			os.Getenv("FORMWALK_IDENTITY_HEADER"),
			os.Getenv("FORMWALK_DEV_RESPONDENT"),
		)
		router := api.NewRouter(cfg, store, resolver,
			utils.SafeEnv("FORMWALK_ADMIN_USER", "admin"),
			os.Getenv("FORMWALK_ADMIN_PASSWORD_HASH"))
		mux.Handle("/api/", router.Handler())

		// Frontend serving strategy (priority):
		// 1) Static files if FORMWALK_STATIC_DIR is set (fullstack image)
		// 2) Dev proxy if FORMWALK_DEV_FRONTEND_URL is set (proxy / to Vite dev)
		if staticDir := os.Getenv("FORMWALK_STATIC_DIR"); staticDir != "" {
			mux.Handle("/", http.FileServer(http.Dir(staticDir)))
		} else if devURL := os.Getenv("FORMWALK_DEV_FRONTEND_URL"); devURL != "" {
			if u, err := url.Parse(devURL); err == nil {
				rp := httputil.NewSingleHostReverseProxy(u)
				// Ensure no-store headers also apply to proxied responses
				rp.ModifyResponse = func(res *http.Response) error {
					res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
					res.Header.Set("Pragma", "no-cache")
					res.Header.Set("Expires", "0")
					return nil
				}
				mux.Handle("/", rp)
			} else {
				log.Printf("invalid FORMWALK_DEV_FRONTEND_URL=%q: %v", devURL, err)
			}
		}
		log.Printf("questionnaire %q loaded (tag %s)", cfg.Settings.Title, cfg.Settings.Tag())
	}

	handler := middleware.SecureHeaders(middleware.NoStore(mux))
	log.Printf("Formwalk server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func loadConfig() (cfg *schema.Config, warnings []string, err error) {
	path, err := config.Discover(utils.SafeEnv("FORMWALK_CONFIG_DIR", "."), nil)
	if err != nil {
		return nil, nil, err
	}
	return config.Load(path, nil)
}

// openStore picks the answer store from the environment: the remote file
// storage service when its URL and token are present, a local sqlite file
// when FORMWALK_DB is set, otherwise process memory.
func openStore() (storage.AnswerStore, error) {
	if baseURL := os.Getenv("FORMWALK_STORAGE_URL"); baseURL != "" {
		token := os.Getenv("FORMWALK_STORAGE_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("FORMWALK_STORAGE_URL is set but FORMWALK_STORAGE_TOKEN is empty")
		}
		return storage.NewFileStore(baseURL, token), nil
	}
	if dbPath := os.Getenv("FORMWALK_DB"); dbPath != "" {
		db, err := sql.Open("sqlite3", dbPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
		}
		return storage.NewSQLiteStore(db)
	}
	log.Printf("no persistent store configured, answers stay in memory")
	return storage.NewMemoryStore(), nil
}

func configErrorHandler(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  "configuration error",
			"detail": err.Error(),
		})
	})
}
