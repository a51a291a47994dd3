// 题库导入脚本
//
// 题库按 <role><level> 分表（sde1、da7 ...），由内容方维护。
// 此脚本把 YAML 题库文件写入对应的表，表不存在时自动创建。
//
// 用法: go run scripts/import_questions.go -file questions.yaml [-config configs]

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"smartprep_backend/internal/config"
	"smartprep_backend/internal/repository"
	"smartprep_backend/internal/service"
	"smartprep_backend/pkg/database"
	"smartprep_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	file := flag.String("file", "", "YAML 题库文件")
	flag.Parse()

	if *file == "" {
		log.Fatal("必须指定 -file")
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg.Server.Mode, cfg.Log)
	defer logger.Log.Sync()

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("无法读取题库文件: %v", err)
	}
	banks, err := service.ParseQuestionBanks(data)
	if err != nil {
		log.Fatalf("题库校验失败: %v", err)
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	n, err := service.ImportQuestionBanks(context.Background(), repository.NewQuestionRepository(db), banks)
	if err != nil {
		logger.Log.Fatal("Question import failed", zap.Int("imported", n), zap.Error(err))
	}
	logger.Log.Info("Question import finished", zap.Int("banks", len(banks)), zap.Int("questions", n))
}
