// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/nacos"
	"bazaar/internal/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AppCtx 传递给业务侧的路由注册回调。
type AppCtx struct {
	Mux    *http.ServeMux
	Config *config.Config
}

// AppInfo 描述启动一个进程所需的信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	Config           *config.Config
	RegisterHandlers func(appCtx AppCtx)
	// OnShutdown 在 HTTP 服务器关闭前按注册顺序的逆序执行
	OnShutdown []func(ctx context.Context)
}

// StartService 封装所有进程通用的启动和优雅关停逻辑。
func StartService(info AppInfo) {
	logger.Init(info.ServiceName)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, info.Config.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. 服务注册
	var registry *nacos.Client
	ip, ipErr := outboundIP()
	if ipErr != nil {
		logger.Logger.Fatal().Err(ipErr).Msg("failed to get outbound IP address")
	}
	registry, err = nacos.NewClient(
		info.Config.Infra.Nacos.ServerAddrs,
		info.Config.Infra.Nacos.Namespace,
		info.Config.Infra.Nacos.Group,
	)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to initialize nacos client")
	}
	if err := registry.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to register service with nacos")
	}

	// 3. HTTP Server：健康检查与指标端点对所有进程开放
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: info.Config})
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		logger.Logger.Info().Str("addr", server.Addr).Msgf("✅ %s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// 4. 阻塞等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger.Info().Msgf("🛑 Shutting down %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关停顺序：业务组件 -> 注册中心注销 -> tracer -> HTTP
	for i := len(info.OnShutdown) - 1; i >= 0; i-- {
		info.OnShutdown[i](ctx)
	}
	if err := registry.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		logger.Logger.Error().Err(err).Msg("error deregistering from nacos")
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("error shutting down tracer provider")
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("error shutting down http server")
	}

	logger.Logger.Info().Msgf("✅ %s gracefully shut down.", info.ServiceName)
}

// outboundIP 获取本机对外通信使用的 IP，用于服务注册。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
