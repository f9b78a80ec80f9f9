package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyUpdateOwner          = "update.owner"
	KeyUpdateRepo           = "update.repo"
	KeyUpdateAssetName      = "update.asset-name"
	KeyUpdateMatch          = "update.match"
	KeyUpdateStrategy       = "update.strategy"
	KeyUpdateStagingDir     = "update.staging-dir"
	KeyUpdateInstallDir     = "update.install-dir"
	KeyUpdateAPIBase        = "update.api-base"
	KeyUpdateDownloadBase   = "update.download-base"
	KeyUpdateMetaTimeout    = "update.metadata-timeout"
	KeyUpdateDLTimeout      = "update.download-timeout"
	KeyUpdateConsentTimeout = "update.consent-timeout"
	KeyUpdateSchedule       = "update.check-schedule"
	KeyUpdateCheckOnStart   = "update.check-on-start"
	KeyUpdateAutoApprove    = "update.auto-approve"
	KeyUpdateChecksumAsset  = "update.checksum-asset"
	KeyUpdateMinisignKey    = "update.minisign-public-key"

	KeyStartupRegister = "startup.register"
	KeyLogLevel        = "log.level"
	KeyLogPath         = "log.path"
	KeyHistoryPath     = "history.path"
)

const (
	// AppName is the display name used for directories, shortcuts and log files.
	AppName = "CareLite"

	DefaultOwner           = "VRHighLow"
	DefaultRepo            = "SystemCareLite"
	DefaultMetadataTimeout = 30 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultCheckSchedule   = "@every 6h"
	DefaultChecksumAsset   = "checksums.txt"
	DefaultAPIBase         = "https://api.github.com"
	DefaultDownloadBase    = "https://github.com"
	envPrefix              = "CL"
	configDirName          = ".carelite"
	configFileName         = "config.yaml"
)

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt fetches an integer configuration value, initializing on demand.
func GetInt(key string) int {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set updates a configuration key at runtime, initializing on demand.
func Set(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.Set(key, value)
	return nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user and project config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, configDirName, configFileName)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyUpdateOwner, DefaultOwner)
	v.SetDefault(KeyUpdateRepo, DefaultRepo)
	v.SetDefault(KeyUpdateAssetName, DefaultAssetName(runtime.GOOS, runtime.GOARCH))
	v.SetDefault(KeyUpdateMatch, "name")
	v.SetDefault(KeyUpdateStrategy, DefaultStrategy(runtime.GOOS))
	v.SetDefault(KeyUpdateStagingDir, DefaultStagingDir())
	v.SetDefault(KeyUpdateInstallDir, DefaultInstallDir(runtime.GOOS))
	v.SetDefault(KeyUpdateAPIBase, DefaultAPIBase)
	v.SetDefault(KeyUpdateDownloadBase, DefaultDownloadBase)
	v.SetDefault(KeyUpdateMetaTimeout, DefaultMetadataTimeout)
	v.SetDefault(KeyUpdateDLTimeout, DefaultDownloadTimeout)
	v.SetDefault(KeyUpdateConsentTimeout, time.Duration(0))
	v.SetDefault(KeyUpdateSchedule, DefaultCheckSchedule)
	v.SetDefault(KeyUpdateCheckOnStart, true)
	v.SetDefault(KeyUpdateAutoApprove, false)
	v.SetDefault(KeyUpdateChecksumAsset, DefaultChecksumAsset)
	v.SetDefault(KeyUpdateMinisignKey, "")
	v.SetDefault(KeyStartupRegister, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogPath, filepath.Join(os.TempDir(), AppName+"_Update.log"))
	v.SetDefault(KeyHistoryPath, defaultHistoryPath())
}

// DefaultAssetName is the release asset expected for the given platform.
func DefaultAssetName(goos, goarch string) string {
	if goos == "windows" {
		return "carelite.exe"
	}
	return fmt.Sprintf("carelite_%s_%s", goos, goarch)
}

// DefaultStrategy picks the elevated installer on Windows, where the program
// normally lives under Program Files, and the self-relaunch elsewhere.
func DefaultStrategy(goos string) string {
	if goos == "windows" {
		return "installer"
	}
	return "relaunch"
}

// DefaultStagingDir returns the private staging area under the OS temp dir.
func DefaultStagingDir() string {
	return filepath.Join(os.TempDir(), AppName+"_Update")
}

// DefaultInstallDir returns the conventional program location for goos.
func DefaultInstallDir(goos string) string {
	switch goos {
	case "windows":
		base := os.Getenv("ProgramFiles")
		if base == "" {
			base = `C:\Program Files`
		}
		return filepath.Join(base, AppName)
	case "darwin":
		return "/usr/local/carelite"
	default:
		return "/opt/carelite"
	}
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName, "history.db")
	}
	return filepath.Join(dir, "carelite", "history.db")
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
//
//nolint:unused // Used in config_test.go
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
}

// ResetForTesting clears package state for tests in other packages.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, configFileName)))
	return reset
}
