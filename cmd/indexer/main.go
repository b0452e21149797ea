package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/rest"

	"task-indexer-sol/internal/config"
	"task-indexer-sol/internal/handler"
	"task-indexer-sol/internal/svc"
	"task-indexer-sol/pkg/logger"
)

var configFile = flag.String("f", "etc/indexer.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	var c config.IndexerConfig
	conf.MustLoad(*configFile, &c)

	logger.Init(c.LogConf.ToLogOption())
	defer logger.Sync()

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	// 进度缓冲的落库与 GC 后台循环
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	serviceContext.ProgressManager.StartFlushLoop(bgCtx, 10*time.Second)
	serviceContext.ProgressManager.StartGCLoop(bgCtx, time.Hour, 7*24*time.Hour)

	sg := zerosvc.NewServiceGroup()

	// HTTP API
	restServer := rest.MustNewServer(rest.RestConf{
		Host: c.RestConf.Host,
		Port: c.RestConf.Port,
	})
	handler.RegisterHandlers(restServer, serviceContext)
	sg.Add(restServer)

	// RPC 回扫服务（按配置可选）
	if serviceContext.Backfill != nil {
		sg.Add(serviceContext.Backfill)
	}

	logger.Infof("[Main] starting task indexer, listening on %s:%d", c.RestConf.Host, c.RestConf.Port)
	go sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infof("[Main] shutting down services...")
	sg.Stop()
}
