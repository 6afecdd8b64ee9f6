package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"confixr/internal/config"
	"confixr/internal/logger"
	"confixr/pkg/api"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	devtools := flag.String("devtools", "http://127.0.0.1:9222", "DevTools 端点")
	target := flag.String("target", "", "目标ID，为空时附加第一个页面")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	svc := api.NewService(cfg, log)
	if err := svc.Start(); err != nil {
		log.Error("启动服务失败", "error", err)
		os.Exit(1)
	}
	defer svc.Stop()

	if err := svc.Attach(*devtools, *target); err != nil {
		log.Error("附加目标失败", "error", err, "devtools", *devtools)
		os.Exit(1)
	}

	subID, events := svc.Subscribe()
	defer svc.Unsubscribe(subID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Info("分析结果",
				"recordID", string(ev.Record.ID),
				"kind", ev.Record.Raw.Kind,
				"classification", ev.Record.Classification,
				"suggestion", ev.Record.Suggestion,
			)
		case <-sig:
			log.Info("收到退出信号", "records", len(svc.List(nil)))
			return
		}
	}
}
