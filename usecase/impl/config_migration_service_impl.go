package impl

import (
	"context"
	"fmt"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// ConfigMigrationServiceImpl は ConfigMigrationService の実装
type ConfigMigrationServiceImpl struct {
	logger domain.Logger
}

// NewConfigMigrationService は新しい ConfigMigrationService を作成する
func NewConfigMigrationService(logger domain.Logger) usecase.ConfigMigrationService {
	return &ConfigMigrationServiceImpl{
		logger: logger,
	}
}

// NeedsMigration は設定がマイグレーションを必要とするかチェックする
func (s *ConfigMigrationServiceImpl) NeedsMigration(cfg *config.AppConfig) bool {
	// バージョンフィールドが存在しない、または0の場合はマイグレーションが必要
	return cfg.Version == 0
}

// GetCurrentVersion は現在の設定バージョンを返す
func (s *ConfigMigrationServiceImpl) GetCurrentVersion() int {
	return 1
}

// Migrate はレガシー形式から現在の形式への移行を実行する
func (s *ConfigMigrationServiceImpl) Migrate(cfg *config.AppConfig) (*config.AppConfig, error) {
	ctx := context.Background()

	// すでに最新バージョンの場合はそのまま返す
	if !s.NeedsMigration(cfg) {
		s.logger.Debug(ctx, "Configuration is already at current version",
			domain.NewField("version", cfg.Version))
		return cfg, nil
	}

	s.logger.Info(ctx, "Starting configuration migration",
		domain.NewField("from_version", cfg.Version),
		domain.NewField("to_version", s.GetCurrentVersion()))

	// 設定のコピーを作成（元の設定を変更しないため）
	migratedCfg := s.copyConfig(cfg)

	s.migrateV0ToV1(migratedCfg)

	// マイグレーション後の検証
	if err := s.validateMigratedConfig(migratedCfg); err != nil {
		s.logger.Error(ctx, "Migrated configuration validation failed",
			domain.NewField("error", err.Error()))
		return nil, fmt.Errorf("migrated configuration validation failed: %w", err)
	}

	s.logger.Info(ctx, "Configuration migration completed successfully",
		domain.NewField("new_version", migratedCfg.Version))

	return migratedCfg, nil
}

// migrateV0ToV1 はバージョン0から1へのマイグレーションを実行する
func (s *ConfigMigrationServiceImpl) migrateV0ToV1(cfg *config.AppConfig) {
	ctx := context.Background()

	// v0 は autoload_values が未設定なら 'yes' のみを数えていた。明示的な設定はそのまま残す
	if cfg.Store != nil && len(cfg.Store.AutoloadValues) == 0 {
		cfg.Store.AutoloadValues = append([]string(nil), config.DefaultAutoloadValues...)
		s.logger.Debug(ctx, "Widened store.autoload_values to the current vocabulary")
	}

	// v0 は秘密鍵を "\n" エスケープのまま保存していた
	if cfg.Warehouse != nil && cfg.Warehouse.PrivateKey != "" {
		cfg.Warehouse.PrivateKey = config.NormalizePrivateKey(cfg.Warehouse.PrivateKey)
	}

	// バージョンフィールドを設定
	cfg.Version = 1
	s.logger.Debug(ctx, "Set configuration version to 1")
}

// validateMigratedConfig はマイグレーション後の設定を検証する
func (s *ConfigMigrationServiceImpl) validateMigratedConfig(cfg *config.AppConfig) error {
	// バージョンが正しく設定されているか確認
	if cfg.Version != s.GetCurrentVersion() {
		return fmt.Errorf("invalid version after migration: expected %d, got %d",
			s.GetCurrentVersion(), cfg.Version)
	}

	// BigQuery の宛先は3つ揃っているか、すべて空である必要がある
	if w := cfg.Warehouse; w != nil {
		set := 0
		for _, v := range []string{w.ProjectID, w.DatasetID, w.TableID} {
			if v != "" {
				set++
			}
		}
		if set != 0 && set != 3 && w.CredentialsFile == "" && w.CredentialsJSON == "" {
			return fmt.Errorf("warehouse project_id, dataset_id and table_id must be set together")
		}
	}

	return nil
}

// copyConfig は設定のディープコピーを作成する
func (s *ConfigMigrationServiceImpl) copyConfig(src *config.AppConfig) *config.AppConfig {
	dst := &config.AppConfig{
		Version:       src.Version,
		ConfigSources: make(config.ConfigSourceMap),
	}

	// ConfigSourcesをコピー
	for k, v := range src.ConfigSources {
		dst.ConfigSources[k] = v
	}

	if src.Store != nil {
		store := *src.Store
		store.AutoloadValues = append([]string(nil), src.Store.AutoloadValues...)
		dst.Store = &store
	}
	if src.Warehouse != nil {
		warehouse := *src.Warehouse
		dst.Warehouse = &warehouse
	}
	if src.Site != nil {
		site := *src.Site
		dst.Site = &site
	}
	if src.Schedule != nil {
		schedule := *src.Schedule
		if src.Schedule.Enabled != nil {
			enabled := *src.Schedule.Enabled
			schedule.Enabled = &enabled
		}
		dst.Schedule = &schedule
	}
	if src.State != nil {
		state := *src.State
		dst.State = &state
	}
	if src.Prometheus != nil {
		prometheus := *src.Prometheus
		dst.Prometheus = &prometheus
	}
	if src.CloudMonitoring != nil {
		cm := *src.CloudMonitoring
		dst.CloudMonitoring = &cm
	}
	if src.CloudWatch != nil {
		cw := *src.CloudWatch
		dst.CloudWatch = &cw
	}
	if src.Logging != nil {
		logging := *src.Logging
		if src.Logging.Promtail != nil {
			promtail := *src.Logging.Promtail
			logging.Promtail = &promtail
		}
		dst.Logging = &logging
	}
	if src.Admin != nil {
		admin := *src.Admin
		dst.Admin = &admin
	}
	if src.Daemon != nil {
		daemon := *src.Daemon
		dst.Daemon = &daemon
	}

	return dst
}
