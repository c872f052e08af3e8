package gui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gioui.org/app"
	"gioui.org/font"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"gioui.org/x/richtext"

	"textcorrector/pkg/correction"
	"textcorrector/pkg/fileprocessor"
	"textcorrector/pkg/highlight"
	"textcorrector/pkg/officecrypto"
	"textcorrector/pkg/protectedwords"
	"textcorrector/pkg/shortcuts"
)

// FileOpType 指定文件操作的类型
type FileOpType int

const (
	FileOpChoose FileOpType = iota // 选择文件
	FileOpSave                     // 保存校正结果
)

// ProcessFunc 校正 inputFile 并写入 outputFile，password 为空表示文件未加密
type ProcessFunc func(ctx context.Context, inputFile, outputFile, password string, onCorrected func(original string, result correction.Result)) ([]fileprocessor.Change, error)

// Options 配置窗口
type Options struct {
	Process          ProcessFunc
	Words            *protectedwords.Store
	Shortcuts        *shortcuts.Table
	DarkMode         bool
	OnDarkMode       func(dark bool) // 切换主题后调用，用于保存设置
	FontFamily       string
	FontSize         int
	PasswordAttempts int
}

// explorerResult 保存文件选择/创建操作的结果
type explorerResult struct {
	closer io.Closer // ReadCloser 或 WriteCloser
	err    error
	opType FileOpType
}

// correctionUpdate 是运行中的单段校正结果
type correctionUpdate struct {
	gen      int
	original string
	result   correction.Result
}

// correctionResult 是一次完整运行的结果
type correctionResult struct {
	gen      int
	tempFile string
	changes  []fileprocessor.Change
	err      error
}

// guiState 保存GUI的状态
type guiState struct {
	opts   Options
	theme  *material.Theme
	window *app.Window

	openBtn    widget.Clickable
	correctBtn widget.Clickable
	saveBtn    widget.Clickable
	addWordBtn widget.Clickable
	darkToggle widget.Bool
	password   widget.Editor
	wordInput  widget.Editor
	preview    widget.List

	inputFile     string // 用户选择的文件
	tempFile      string // 临时输出文件路径
	correctedName string // 建议的保存文件名
	status        string
	current       string // 正在处理的段落
	changes       []fileprocessor.Change
	previewState  []richtext.InteractiveText
	wrongPassword int

	processing  bool // 任何后台操作进行中为true
	correcting  bool // 校正进行中，可被新的校正或打开文件取代
	generation  int  // 每次开始校正时递增，旧结果被丢弃
	cancel      context.CancelFunc
	initialized bool

	explorerInst     *explorer.Explorer
	fileOpResultChan chan explorerResult
	resultChan       chan correctionResult
	updateChan       chan correctionUpdate
	saveResultChan   chan error
}

// CreateGUI 初始化并运行GUI
func CreateGUI(opts Options) {
	if opts.Shortcuts == nil {
		opts.Shortcuts = shortcuts.Default()
	}
	if opts.PasswordAttempts < 1 {
		opts.PasswordAttempts = 3
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 12
	}

	go func() {
		w := new(app.Window)
		w.Option(
			app.Title("文字校正"),
			app.Size(unit.Dp(720), unit.Dp(560)),
		)

		t := material.NewTheme()
		t.Palette = paletteFor(opts.DarkMode)

		state := &guiState{
			opts:             opts,
			theme:            t,
			window:           w,
			fileOpResultChan: make(chan explorerResult, 1),
			resultChan:       make(chan correctionResult, 4),
			updateChan:       make(chan correctionUpdate, 16),
			saveResultChan:   make(chan error, 1),
		}
		state.darkToggle.Value = opts.DarkMode
		state.password = widget.Editor{SingleLine: true, Submit: true, Mask: '*'}
		state.wordInput = widget.Editor{SingleLine: true, Submit: true}
		state.preview.Axis = layout.Vertical

		if err := run(state); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

// paletteFor 返回浅色或深色配色
func paletteFor(dark bool) material.Palette {
	if dark {
		return material.Palette{
			Bg:         color.NRGBA{R: 0x1E, G: 0x1E, B: 0x1E, A: 0xFF},
			Fg:         color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF},
			ContrastBg: color.NRGBA{R: 0x13, G: 0x7A, B: 0x50, A: 0xFF},
			ContrastFg: color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		}
	}
	return material.Palette{
		Bg:         color.NRGBA{R: 0xE8, G: 0xE8, B: 0xE8, A: 0xFF},
		Fg:         color.NRGBA{R: 0x32, G: 0x32, B: 0x32, A: 0xFF},
		ContrastBg: color.NRGBA{R: 0x13, G: 0x7A, B: 0x50, A: 0xFF},
		ContrastFg: color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
	}
}

// highlightColor 是变更字符的颜色
func highlightColor(dark bool) color.NRGBA {
	if dark {
		return color.NRGBA{R: 0xFF, G: 0x80, B: 0x80, A: 0xFF}
	}
	return color.NRGBA{R: 0xC6, G: 0x28, B: 0x28, A: 0xFF}
}

// createTempFilePath 在独立的临时目录中创建一个文件路径，每次运行互不覆盖
func createTempFilePath(suggestedName string) string {
	timestamp := time.Now().Format("20060102-150405")
	subDir, err := os.MkdirTemp("", "textcorrector-"+timestamp+"-")
	if err != nil {
		subDir = os.TempDir()
	}
	return filepath.Join(subDir, "temp_"+timestamp+filepath.Ext(suggestedName))
}

// getCorrectedFilename 获取校正后的文件名
func getCorrectedFilename(filename string) string {
	if filename == "" {
		return "document_" + time.Now().Format("20060102-150405") + "_校正.docx"
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// 限制基础文件名长度，避免生成过长的文件名
	runes := []rune(base)
	if len(runes) > 50 {
		base = string(runes[:50])
	}
	return base + "_校正" + ext
}

// statusForError 把运行错误转换为状态栏文字
func statusForError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "已取消"
	case errors.Is(err, fileprocessor.ErrEncrypted):
		return "檔案已加密，請輸入密碼後重新校正"
	case errors.Is(err, officecrypto.ErrWrongPassword):
		return "密碼錯誤"
	case errors.Is(err, officecrypto.ErrUnsupportedEncryption):
		return "不支援的加密方式"
	case errors.Is(err, correction.ErrConversion):
		return "轉換失敗: " + err.Error()
	default:
		return "處理失敗: " + err.Error()
	}
}

// previewSpans 将一段校正结果转换为富文本，变更部分高亮
func previewSpans(c fileprocessor.Change, f font.Font, size unit.Sp, fg, hl color.NRGBA) []richtext.SpanStyle {
	prefix := fmt.Sprintf("%s #%d  ", filepath.Base(c.Part), c.Paragraph+1)
	spans := []richtext.SpanStyle{{Content: prefix, Font: f, Size: size * 0.8, Color: fg}}
	for _, p := range highlight.Pieces(c.Corrected, c.Ranges) {
		s := richtext.SpanStyle{Content: p.Text, Font: f, Size: size, Color: fg}
		if p.Changed {
			s.Color = hl
			s.Font.Weight = font.Bold
		}
		spans = append(spans, s)
	}
	return spans
}

// removeTemp 删除临时文件及其目录
func removeTemp(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
	_ = os.Remove(filepath.Dir(path))
}

// resetFile 清理临时文件并清空当前文件相关状态
func (s *guiState) resetFile() {
	removeTemp(s.tempFile)
	s.tempFile = ""
	s.inputFile = ""
	s.correctedName = ""
	s.current = ""
	s.changes = nil
	s.previewState = nil
	s.wrongPassword = 0
	s.password.SetText("")
}

// abandonRun 取消进行中的校正，其结果到达时会因代数不符被丢弃
func (s *guiState) abandonRun() {
	if !s.correcting {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.correcting = false
	s.processing = false
	s.tempFile = "" // 由旧运行的结果负责删除
}

func (s *guiState) chooseFile() {
	if s.processing && !s.correcting {
		return
	}
	s.abandonRun()
	s.resetFile()
	s.processing = true
	s.status = "正在選擇..."
	go func() {
		rc, err := s.explorerInst.ChooseFile(".docx")
		s.fileOpResultChan <- explorerResult{closer: rc, err: err, opType: FileOpChoose}
		s.window.Invalidate()
	}()
}

func (s *guiState) saveFile() {
	if s.processing || s.tempFile == "" {
		return
	}
	s.processing = true
	s.status = "正在儲存..."
	name := s.correctedName
	go func() {
		wc, err := s.explorerInst.CreateFile(name)
		s.fileOpResultChan <- explorerResult{closer: wc, err: err, opType: FileOpSave}
		s.window.Invalidate()
	}()
}

// beginRun 开始新一代校正：取代进行中的运行并准备新的临时文件
func (s *guiState) beginRun() (context.Context, int) {
	if s.correcting {
		s.abandonRun()
	} else {
		removeTemp(s.tempFile)
	}
	s.generation++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.tempFile = createTempFilePath(s.correctedName)
	s.processing = true
	s.correcting = true
	s.status = "正在校正..."
	s.current = ""
	s.changes = nil
	s.previewState = nil
	return ctx, s.generation
}

func (s *guiState) startCorrection() {
	if (s.processing && !s.correcting) || s.inputFile == "" || s.opts.Process == nil {
		return
	}
	ctx, gen := s.beginRun()

	go func(inputFile, tempFile, password string) {
		changes, err := s.opts.Process(ctx, inputFile, tempFile, password, func(original string, res correction.Result) {
			select {
			case s.updateChan <- correctionUpdate{gen: gen, original: original, result: res}:
			default:
			}
			s.window.Invalidate()
		})
		s.resultChan <- correctionResult{gen: gen, tempFile: tempFile, changes: changes, err: err}
		s.window.Invalidate()
	}(s.inputFile, s.tempFile, s.password.Text())
}

func (s *guiState) addProtectedWord() {
	word := strings.TrimSpace(s.wordInput.Text())
	if word == "" || s.opts.Words == nil {
		return
	}
	if err := s.opts.Words.Add(word); err != nil {
		if errors.Is(err, protectedwords.ErrDuplicate) {
			s.status = "保護詞已存在: " + word
		} else {
			s.status = "新增保護詞失敗: " + err.Error()
		}
		return
	}
	if err := s.opts.Words.Save(); err != nil {
		s.status = "儲存保護詞失敗: " + err.Error()
		return
	}
	s.wordInput.SetText("")
	s.status = fmt.Sprintf("已新增保護詞「%s」（共 %d 個）", word, s.opts.Words.Len())
}

func (s *guiState) setDark(dark bool) {
	s.darkToggle.Value = dark
	s.theme.Palette = paletteFor(dark)
	if s.opts.OnDarkMode != nil {
		s.opts.OnDarkMode(dark)
	}
}

// handleAction 执行快捷键对应的操作，返回 true 表示退出
func (s *guiState) handleAction(a shortcuts.Action) bool {
	switch a {
	case shortcuts.Open:
		s.chooseFile()
	case shortcuts.Save:
		s.saveFile()
	case shortcuts.Correct:
		s.startCorrection()
	case shortcuts.AddProtected:
		s.addProtectedWord()
	case shortcuts.ToggleDark:
		s.setDark(!s.darkToggle.Value)
	case shortcuts.Quit:
		return true
	}
	return false
}

// drainChannels 处理后台任务的结果
func (s *guiState) drainChannels() {
	for {
		select {
		case res := <-s.fileOpResultChan:
			s.handleFileOp(res)
		case upd := <-s.updateChan:
			if upd.gen == s.generation {
				s.current = upd.original + " → " + upd.result.Text
			}
		case res := <-s.resultChan:
			s.handleResult(res)
		case err := <-s.saveResultChan:
			s.processing = false
			if err != nil {
				s.status = "儲存失敗: " + err.Error()
			} else {
				s.status = "儲存成功"
			}
		default:
			return
		}
	}
}

func (s *guiState) handleFileOp(res explorerResult) {
	s.processing = false
	if res.err != nil {
		if errors.Is(res.err, explorer.ErrUserDecline) {
			s.status = "已取消"
		} else {
			s.status = "操作失敗: " + res.err.Error()
		}
		return
	}

	switch res.opType {
	case FileOpChoose:
		file, ok := res.closer.(*os.File)
		if !ok {
			res.closer.Close()
			s.status = "不支援的檔案類型"
			return
		}
		file.Close()
		s.inputFile = file.Name()
		s.correctedName = getCorrectedFilename(filepath.Base(file.Name()))
		s.status = "已選擇: " + filepath.Base(file.Name())

	case FileOpSave:
		file, ok := res.closer.(*os.File)
		if !ok {
			res.closer.Close()
			s.status = "儲存失敗，請重試"
			return
		}
		s.processing = true
		go func(tempFile string) {
			defer s.window.Invalidate()
			src, err := os.Open(tempFile)
			if err != nil {
				file.Close()
				s.saveResultChan <- err
				return
			}
			_, err = io.Copy(file, src)
			src.Close()
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			s.saveResultChan <- err
		}(s.tempFile)
	}
}

func (s *guiState) handleResult(res correctionResult) {
	if res.gen != s.generation {
		if res.tempFile != s.tempFile {
			removeTemp(res.tempFile)
		}
		return
	}
	s.processing = false
	s.correcting = false
	s.cancel = nil
	s.current = ""
	if res.err != nil {
		if errors.Is(res.err, officecrypto.ErrWrongPassword) {
			s.wrongPassword++
			if s.wrongPassword >= s.opts.PasswordAttempts {
				s.resetFile()
				s.status = "密碼錯誤次數過多，請重新選擇檔案"
				return
			}
		}
		s.status = statusForError(res.err)
		removeTemp(s.tempFile)
		s.tempFile = ""
		return
	}
	s.wrongPassword = 0
	s.changes = res.changes
	s.previewState = make([]richtext.InteractiveText, len(res.changes))
	if len(res.changes) == 0 {
		s.status = "校正完成，沒有需要修改的內容"
	} else {
		s.status = fmt.Sprintf("校正完成，共 %d 段修改", len(res.changes))
	}
}

// run 实现GUI的主循环
func run(state *guiState) error {
	var ops op.Ops
	state.explorerInst = explorer.NewExplorer(state.window)

	for {
		e := state.window.Event()
		state.explorerInst.ListenEvents(e)

		switch e := e.(type) {
		case app.DestroyEvent:
			if state.cancel != nil {
				state.cancel()
			}
			removeTemp(state.tempFile)
			return e.Err

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			state.drainChannels()

			if !state.initialized {
				state.window.Perform(system.ActionCenter)
				state.initialized = true
			}

			for {
				ev, ok := gtx.Event(state.opts.Shortcuts.Filters()...)
				if !ok {
					break
				}
				ke, ok := ev.(key.Event)
				if !ok || ke.State != key.Press {
					continue
				}
				if action, ok := state.opts.Shortcuts.Lookup(ke); ok && state.handleAction(action) {
					return nil
				}
			}

			if state.openBtn.Clicked(gtx) {
				state.chooseFile()
			}
			if state.correctBtn.Clicked(gtx) {
				state.startCorrection()
			}
			if state.saveBtn.Clicked(gtx) {
				state.saveFile()
			}
			if state.addWordBtn.Clicked(gtx) {
				state.addProtectedWord()
			}
			if state.darkToggle.Update(gtx) {
				state.setDark(state.darkToggle.Value)
			}
			for {
				ev, ok := state.wordInput.Update(gtx)
				if !ok {
					break
				}
				if _, ok := ev.(widget.SubmitEvent); ok {
					state.addProtectedWord()
				}
			}
			for {
				ev, ok := state.password.Update(gtx)
				if !ok {
					break
				}
				if _, ok := ev.(widget.SubmitEvent); ok {
					state.startCorrection()
				}
			}

			renderUI(gtx, state)
			e.Frame(gtx.Ops)
		}
	}
}

// renderUI 渲染界面
func renderUI(gtx layout.Context, state *guiState) {
	th := state.theme
	drawBackground(gtx, th.Bg)

	layout.UniformInset(unit.Dp(10)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			// 按钮行
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return buttonLayout(gtx, th, &state.openBtn, "開啟", state.processing && !state.correcting)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return buttonLayout(gtx, th, &state.correctBtn, "校正", (state.processing && !state.correcting) || state.inputFile == "")
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return buttonLayout(gtx, th, &state.saveBtn, "另存", state.processing || state.tempFile == "")
					}),
					layout.Flexed(1, layout.Spacer{}.Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return material.Switch(th, &state.darkToggle, "深色模式").Layout(gtx)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return layout.Inset{Left: unit.Dp(6)}.Layout(gtx, material.Body2(th, "深色").Layout)
					}),
				)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			// 密码与保护词
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						return editorLayout(gtx, th, &state.password, "密碼（未加密可留空）")
					}),
					layout.Rigid(layout.Spacer{Width: unit.Dp(10)}.Layout),
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						return editorLayout(gtx, th, &state.wordInput, "新增保護詞")
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return buttonLayout(gtx, th, &state.addWordBtn, "加入", state.opts.Words == nil)
					}),
				)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			// 状态
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				status := state.status
				if state.processing && state.current != "" {
					status += "  " + state.current
				}
				lbl := material.Label(th, 14, status)
				lbl.MaxLines = 1
				lbl.Alignment = text.Start
				return lbl.Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			// 预览
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return previewLayout(gtx, state)
			}),
		)
	})
}

func previewLayout(gtx layout.Context, state *guiState) layout.Dimensions {
	th := state.theme
	f := font.Font{Typeface: font.Typeface(state.opts.FontFamily)}
	size := unit.Sp(float32(state.opts.FontSize) * 4 / 3)
	hl := highlightColor(state.darkToggle.Value)

	return material.List(th, &state.preview).Layout(gtx, len(state.changes), func(gtx layout.Context, i int) layout.Dimensions {
		spans := previewSpans(state.changes[i], f, size, th.Fg, hl)
		return layout.Inset{Bottom: unit.Dp(6)}.Layout(gtx, richtext.Text(&state.previewState[i], th.Shaper, spans...).Layout)
	})
}

// drawBackground 绘制背景色
func drawBackground(gtx layout.Context, c color.NRGBA) {
	dr := image.Rectangle{Max: gtx.Constraints.Max}
	paint.FillShape(gtx.Ops, c, clip.Rect(dr).Op())
}

func editorLayout(gtx layout.Context, th *material.Theme, ed *widget.Editor, hint string) layout.Dimensions {
	return widget.Border{Color: th.Fg, CornerRadius: unit.Dp(4), Width: unit.Dp(1)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.UniformInset(unit.Dp(6)).Layout(gtx, material.Editor(th, ed, hint).Layout)
	})
}

// buttonLayout 创建按钮布局
func buttonLayout(gtx layout.Context, theme *material.Theme, button *widget.Clickable, label string, disabled bool) layout.Dimensions {
	margins := layout.Inset{Top: unit.Dp(2), Bottom: unit.Dp(2), Left: unit.Dp(4), Right: unit.Dp(4)}

	return margins.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		gtx.Constraints.Min.X = gtx.Dp(72)

		btn := material.Button(theme, button, label)
		btn.CornerRadius = unit.Dp(4)
		btn.Inset = layout.Inset{Top: unit.Dp(4), Bottom: unit.Dp(4), Left: unit.Dp(8), Right: unit.Dp(8)}
		btn.TextSize = unit.Sp(14)

		if disabled {
			gtx = gtx.Disabled()
			btn.Background = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
			btn.Color = color.NRGBA{R: 150, G: 150, B: 150, A: 255}
		} else {
			btn.Background = theme.ContrastBg
			btn.Color = theme.ContrastFg
		}
		return btn.Layout(gtx)
	})
}
