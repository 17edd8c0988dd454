package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// 在内存中维护一组通过价差/switch 关联的合约，按订单脚本录入挂单并输出最优实盘/合成报价。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(ctx).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
