// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"studynet-go/internal/config"
	"studynet-go/internal/handler"
	"studynet-go/internal/middleware"
	"studynet-go/internal/pipeline"
	"studynet-go/internal/repository"
	"studynet-go/internal/service"
	"studynet-go/pkg/database"
	"studynet-go/pkg/embedding"
	"studynet-go/pkg/es"
	"studynet-go/pkg/kafka"
	"studynet-go/pkg/llm"
	"studynet-go/pkg/log"
	"studynet-go/pkg/storage"
	"studynet-go/pkg/tika"
	"studynet-go/pkg/websearch"
)

func main() {
	// 1. 初始化配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化外部存储
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	redisClient, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}
	if err := es.EnsureChildIndex(esClient, cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions); err != nil {
		log.Fatalf("创建子块索引失败: %v", err)
	}
	objectStore, err := storage.NewObjectStore(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化外部服务客户端
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	var webSearchClient websearch.Client
	if cfg.WebSearch.APIKey != "" {
		webSearchClient = websearch.NewClient(cfg.WebSearch)
	}

	// 5. 初始化 Repository
	parentRepo, err := repository.NewParentChunkRepository(db)
	if err != nil {
		log.Fatalf("初始化父块存储失败: %v", err)
	}
	childIndex := repository.NewChildChunkIndex(esClient, cfg.Elasticsearch.IndexName)
	courseRepo, err := repository.NewCourseRepository(db)
	if err != nil {
		log.Fatalf("初始化课程存储失败: %v", err)
	}
	sessionTTL := time.Duration(cfg.Memory.SessionTTLHours) * time.Hour
	conversationRepo := repository.NewConversationRepository(redisClient, sessionTTL)
	metricsRepo := repository.NewMetricsRepository(redisClient)

	// 6. 初始化 Service (依赖注入)
	ingestService := service.NewIngestService(parentRepo, childIndex, embeddingClient, cfg.Retrieval, cfg.Embedding, cfg.KnowledgeBase)
	datasetService := service.NewDatasetService(courseRepo)
	queryService := service.NewQueryService(llmClient, cfg.Retrieval)
	retrievalService := service.NewRetrievalService(embeddingClient, childIndex, parentRepo, courseRepo, cfg.Retrieval)
	rerankService := service.NewRerankService(llmClient)
	answerService := service.NewAnswerService(llmClient, webSearchClient, cfg.Retrieval, cfg.LLM)
	memoryService := service.NewMemoryService(conversationRepo, llmClient, cfg.Memory)
	ragService := service.NewRAGService(queryService, retrievalService, rerankService, answerService, memoryService, metricsRepo, cfg.Retrieval)
	uploadService := service.NewUploadService(objectStore, producer)

	// 7. 启动后台 Kafka 消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	processor := pipeline.NewProcessor(objectStore, tikaClient, ingestService)
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, processor)

	// 7.1 首次启动导入课程数据集（幂等，目录缺失时跳过）
	if cfg.KnowledgeBase.DatasetDir != "" {
		go func() {
			count, err := courseRepo.CountCourses()
			if err != nil {
				log.Warnf("查询课程数量失败, 跳过数据集导入: %v", err)
				return
			}
			if count > 0 {
				log.Infof("课程表已有 %d 条数据, 跳过数据集导入", count)
				return
			}
			if err := datasetService.LoadFromDir(cfg.KnowledgeBase.DatasetDir); err != nil {
				log.Errorf("课程数据集导入失败: %v", err)
			}
		}()
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	queryHandler := handler.NewQueryHandler(ragService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	knowledgeHandler := handler.NewKnowledgeHandler(ingestService)
	memoryHandler := handler.NewMemoryHandler(memoryService)
	systemHandler := handler.NewSystemHandler(metricsRepo, ingestService)
	chatHandler := handler.NewChatHandler(ragService)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/query", queryHandler.Query)

		upload := apiV1.Group("/upload")
		{
			upload.POST("/document", uploadHandler.UploadDocument)
			upload.POST("/text", uploadHandler.UploadText)
		}

		kb := apiV1.Group("/knowledge-base")
		{
			kb.GET("/status", knowledgeHandler.Status)
			kb.POST("/reload", knowledgeHandler.Reload)
		}
		apiV1.DELETE("/vectorstore/clear", knowledgeHandler.Clear)

		memoryGroup := apiV1.Group("/memory")
		{
			memoryGroup.GET("/:session_id", memoryHandler.Get)
			memoryGroup.DELETE("/:session_id", memoryHandler.Delete)
		}

		apiV1.GET("/health", systemHandler.Health)
		apiV1.GET("/metrics", systemHandler.Metrics)
	}
	r.GET("/chat/:session_id", chatHandler.Handle)

	// 10. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停消费者, 再给 HTTP 服务一个超时窗口
	stopConsumer()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
