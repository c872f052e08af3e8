package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"textcorrector/pkg/config"
	"textcorrector/pkg/correction"
	"textcorrector/pkg/fileprocessor"
	"textcorrector/pkg/highlight"
	"textcorrector/pkg/numbering"
	"textcorrector/pkg/protectedwords"
	"textcorrector/pkg/runner"
)

func loadConfig() *config.AppConfig {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("載入設定檔失敗，使用預設設定: %v", err)
		cfg = config.DefaultConfig()
	}
	return cfg
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "todo" {
		if err := runTodo(loadConfig().Paths.Todo, os.Args[2:], os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	var (
		password  = flag.String("password", "", "密碼（加密檔案；留空則互動輸入）")
		wordsFile = flag.String("words", "", "保護詞 JSON 檔，預設使用設定中的詞表")
		mode      = flag.String("mode", "", "轉換模式: s2t, s2tw, s2twp, s2hk, t2s, roundtrip")
		backend   = flag.String("backend", "", "轉換後端: opencc 或 llm")
		reportOut = flag.String("report", "", "輸出 xlsx 校正記錄")
		plainOut  = flag.String("plain", "", "輸出校正後的純文字，標題依層級縮排")
		fine      = flag.Bool("fine", false, "長度改變時逐字標示差異")
		quiet     = flag.Bool("q", false, "不顯示逐段差異")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "使用方法: %s [選項] input.docx [output.docx]\n       %s todo <命令>\n", filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}
	inputFile := flag.Arg(0)
	if !strings.HasSuffix(strings.ToLower(inputFile), ".docx") {
		log.Fatalf("輸入檔案必須是 .docx 格式: %s", inputFile)
	}
	if _, err := os.Stat(inputFile); err != nil {
		log.Fatalf("輸入檔案不存在: %s", inputFile)
	}
	outputFile := flag.Arg(1)
	if outputFile == "" {
		ext := filepath.Ext(inputFile)
		outputFile = strings.TrimSuffix(inputFile, ext) + "_校正" + ext
	}

	cfg := loadConfig()
	if *mode != "" {
		cfg.Converter.Mode = *mode
	}
	if *backend != "" {
		cfg.Converter.Backend = *backend
	}
	if *fine {
		cfg.Converter.DiffPolicy = correction.FineGrained.String()
	}

	opts := []runner.Option{runner.WithReport(*reportOut)}
	if *wordsFile != "" {
		store, err := protectedwords.Open(*wordsFile)
		if err != nil {
			log.Fatalf("讀取保護詞失敗: %v", err)
		}
		opts = append(opts, runner.WithWords(store.Snapshot()))
	}
	if *password != "" {
		opts = append(opts, runner.WithPasswordPrompt(runner.StaticPassword(*password)))
	} else {
		opts = append(opts, runner.WithPasswordPrompt(terminalPrompt()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cb := runner.Callbacks{
		OnProgress: func(phase string, done, total int) {
			fmt.Fprintf(os.Stderr, "\r%s %d/%d", phase, done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		},
	}
	changes, err := runner.RunCorrectionWithConfig(ctx, inputFile, outputFile, cfg, cb, opts...)
	if err != nil {
		if errors.Is(err, runner.ErrCancelled) {
			log.Fatal("已取消")
		}
		log.Fatalf("處理檔案時發生錯誤: %v", err)
	}

	if !*quiet {
		for _, c := range changes {
			fmt.Printf("[%s #%d]\n", c.Part, c.Paragraph+1)
			if err := highlight.Render(os.Stdout, c.Corrected, c.Ranges); err != nil {
				log.Fatal(err)
			}
		}
	}
	fmt.Printf("共 %d 段修改，已寫入 %s\n", len(changes), outputFile)

	if *plainOut != "" {
		data, err := os.ReadFile(outputFile)
		if err != nil {
			log.Fatal(err)
		}
		text, err := fileprocessor.ExtractText(data)
		if err != nil {
			log.Fatalf("匯出純文字失敗: %v", err)
		}
		if err := os.WriteFile(*plainOut, []byte(numbering.Reindent(text)), 0644); err != nil {
			log.Fatal(err)
		}
	}
}

// terminalPrompt 从标准输入逐行读取密码，空行表示取消
func terminalPrompt() runner.PasswordPrompt {
	in := bufio.NewScanner(os.Stdin)
	return func(attempt int, lastErr error) string {
		if lastErr != nil {
			fmt.Fprintf(os.Stderr, "%v\n", lastErr)
		}
		fmt.Fprintf(os.Stderr, "檔案已加密，請輸入密碼（第 %d 次，空行取消）: ", attempt)
		if !in.Scan() {
			return ""
		}
		return strings.TrimSpace(in.Text())
	}
}
