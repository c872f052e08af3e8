package main

import (
	"context"
	"log"

	"textcorrector/pkg/config"
	"textcorrector/pkg/correction"
	"textcorrector/pkg/fileprocessor"
	"textcorrector/pkg/gui"
	"textcorrector/pkg/protectedwords"
	"textcorrector/pkg/runner"
	"textcorrector/pkg/shortcuts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("載入設定檔失敗，使用預設設定: %v", err)
		cfg = config.DefaultConfig()
	}

	words, err := protectedwords.Open(cfg.Paths.ProtectedWords)
	if err != nil {
		log.Printf("讀取保護詞失敗: %v", err)
		words = protectedwords.NewStore(cfg.Paths.ProtectedWords)
	}

	table := shortcuts.Default()
	for _, sc := range cfg.Editor.CustomShortcuts {
		if err := table.Bind(sc.Action, sc.Keys); err != nil {
			log.Printf("忽略快捷鍵 %s=%s: %v", sc.Action, sc.Keys, err)
		}
	}

	gui.CreateGUI(gui.Options{
		Process: func(ctx context.Context, inputFile, outputFile, password string, onCorrected func(string, correction.Result)) ([]fileprocessor.Change, error) {
			opts := []runner.Option{runner.WithWords(words.Snapshot())}
			if password != "" {
				opts = append(opts, runner.WithPasswordPrompt(runner.StaticPassword(password)))
			}
			return runner.RunCorrectionWithConfig(ctx, inputFile, outputFile, cfg, runner.Callbacks{
				OnCorrected: onCorrected,
			}, opts...)
		},
		Words:     words,
		Shortcuts: table,
		DarkMode:  cfg.Editor.DarkMode,
		OnDarkMode: func(dark bool) {
			cfg.Editor.DarkMode = dark
			if err := config.Update("editor", "dark_mode", dark); err != nil {
				log.Printf("儲存設定失敗: %v", err)
			}
		},
		FontFamily:       cfg.Editor.FontFamily,
		FontSize:         cfg.Editor.FontSize,
		PasswordAttempts: cfg.Processing.PasswordAttempts,
	})
}
