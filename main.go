// @title SmartPrep 后端 API
// @version 1.0
// @description 求职备考平台：岗位关卡测验、解锁进度与简历面试题生成。

// @contact.name API支持
// @contact.email support@smartprep.dev

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"

	"smartprep_backend/internal/app"
	"smartprep_backend/internal/config"
	"smartprep_backend/pkg/configwatcher"
	"smartprep_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件目录")
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := configwatcher.WatchConfig(ctx, *configDir, application.ApplyConfig); err != nil {
		logger.Log.Warn("Config watcher disabled", zap.Error(err))
	}

	application.Run()
}
