// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voyago/internal/pkg/config"
	"voyago/internal/pkg/logger"
	"voyago/internal/pkg/nacos"
	"voyago/internal/pkg/utils"
	"voyago/internal/tracing"
)

type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// Runner 是一个长期运行的后台任务（消费循环、轮询器、清扫器）。
// ctx 取消后必须在合理时间内返回。
type Runner func(ctx context.Context) error

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 一个函数，允许每个服务注册自己独特的 HTTP 路由
	Runners          []Runner            // 随服务生命周期启停的后台任务
}

// Init 加载配置并初始化全局日志，必须在 StartService 之前调用。
func Init(serviceName string) {
	configPath := getEnv("CONFIG_PATH", "configs/config.yaml")
	if _, err := config.Load(configPath); err != nil {
		log.Fatalf("FATAL: failed to load config from %s: %v", configPath, err)
	}
	logger.Init(serviceName)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := config.GetCurrentConfig()

	// 1. 初始化核心组件
	// a. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}

	// b. Nacos 命名客户端
	namingClient, err := nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		log.Fatalf("failed to initialize nacos client: %v", err)
	}

	// 2. 获取本机 IP 用于注册
	ip, err := utils.GetOutboundIP()
	if err != nil {
		log.Fatalf("failed to get outbound IP address: %v", err)
	}

	// 3. 执行服务注册
	err = namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port)
	if err != nil {
		log.Fatalf("failed to register service with nacos: %v", err)
	}

	// 4. 创建并启动 HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		log.Printf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not listen on %s: %v\n", server.Addr, err)
		}
	}()

	// 5. 启动后台任务，任意一个异常退出都会触发整个服务关停
	runCtx, cancelRunners := context.WithCancel(context.Background())
	g, gCtx := errgroup.WithContext(runCtx)
	for _, r := range info.Runners {
		runner := r
		g.Go(func() error {
			return runner(gCtx)
		})
	}
	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- g.Wait()
	}()

	// 6. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 阻塞主 goroutine，直到接收到退出信号或后台任务崩溃
	select {
	case <-quit:
		log.Printf("Shutting down service %s...", info.ServiceName)
	case err := <-runnerDone:
		if err != nil {
			log.Printf("Background runner failed, shutting down service %s: %v", info.ServiceName, err)
		}
	}

	// 创建一个有超时的 context，用于关停流程
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 7. 在关停流程中，按顺序执行清理操作 (后进先出)
	// a. 从 Nacos 注销服务，先摘流量
	if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		log.Printf("Error deregistering from Nacos: %v", err)
	} else {
		log.Printf("Service %s deregistered from Nacos.", info.ServiceName)
	}

	// b. 停掉后台任务并等待退出
	cancelRunners()
	select {
	case <-runnerDone:
	case <-ctx.Done():
		log.Println("Timed out waiting for background runners to stop.")
	}

	// c. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down tracer provider: %v", err)
	} else {
		log.Println("Tracer provider shut down.")
	}

	// d. 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down http server: %v", err)
	} else {
		log.Println("HTTP server shut down.")
	}

	log.Printf("Service %s gracefully shut down.", info.ServiceName)
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
