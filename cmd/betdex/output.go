package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/betbot/betdex/internal/chain"
)

var stdout io.Writer = os.Stdout

// printJSON 缩进输出到 stdout
func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table 简单的对齐表格
type table struct {
	w *tabwriter.Writer
}

func newTable(header ...string) *table {
	t := &table{w: tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.w, strings.Join(cols, "\t"))
}

func (t *table) flush() error {
	return t.w.Flush()
}

func short(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

func when(unix uint64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(int64(unix), 0).Format("2006-01-02 15:04")
}

// printReceipt 交易结果；json 模式输出回执摘要
func (a *app) printReceipt(action string, r *types.Receipt) error {
	if r == nil {
		return nil
	}
	if a.json {
		return printJSON(map[string]any{
			"action": action,
			"txHash": r.TxHash.Hex(),
			"block":  r.BlockNumber,
			"status": r.Status,
		})
	}
	link := r.TxHash.Hex()
	if base := strings.TrimSuffix(a.cfg.Network.ExplorerURL, "/"); base != "" {
		link = base + "/tx/" + link
	}
	fmt.Fprintf(stdout, "%s 成功: %s\n", action, link)
	return nil
}

// explain 面向用户的错误文案，保留原始错误供日志排查
func explain(err error) error {
	if err == nil {
		return nil
	}
	msg := chain.FriendlyMessage(err)
	if msg == "Transaction failed. Please try again." {
		return err
	}
	return fmt.Errorf("%s (%w)", msg, err)
}
