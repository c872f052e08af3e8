package main

/*
#include <stdlib.h>

// Define callback function types with void* user_data for context/reference passing
typedef void (*ProgressCallback)(char* phase, int done, int total, void* user_data);
typedef void (*ErrorCallback)(char* stage, char* error, void* user_data);

// Helper functions to call the function pointers from Go
static void call_progress(ProgressCallback cb, char* phase, int done, int total, void* user_data) {
    if (cb) cb(phase, done, total, user_data);
}

static void call_error(ErrorCallback cb, char* stage, char* error, void* user_data) {
    if (cb) cb(stage, error, user_data);
}
*/
import "C"
import (
	"context"
	"sync"
	"unsafe"

	"textcorrector/pkg/runner"
)

var taskMap sync.Map // map[int64]context.CancelFunc

//export Correct
func Correct(
	taskID C.longlong,
	inputPath *C.char,
	outputPath *C.char,
	configToml *C.char,
	progressCB C.ProgressCallback,
	errorCB C.ErrorCallback,
	userData unsafe.Pointer,
) *C.char {
	ctx, cancel := context.WithCancel(context.Background())
	id := int64(taskID)
	taskMap.Store(id, cancel)
	defer func() {
		taskMap.Delete(id)
		cancel()
	}()

	goInput := C.GoString(inputPath)
	goOutput := C.GoString(outputPath)

	cfg, err := parseConfig(C.GoString(configToml))
	if err != nil {
		return C.CString(err.Error())
	}

	cb := runner.Callbacks{
		OnProgress: func(phase string, done, total int) {
			cPhase := C.CString(phase)
			defer C.free(unsafe.Pointer(cPhase))
			C.call_progress(progressCB, cPhase, C.int(done), C.int(total), userData)
		},
		OnError: func(stage string, err error) {
			cStage := C.CString(stage)
			cErr := C.CString(err.Error())
			defer C.free(unsafe.Pointer(cStage))
			defer C.free(unsafe.Pointer(cErr))
			C.call_error(errorCB, cStage, cErr, userData)
		},
	}

	if _, err := runner.RunCorrectionWithConfig(ctx, goInput, goOutput, cfg, cb); err != nil {
		return C.CString(err.Error())
	}
	return nil // Success
}

//export CancelCorrect
func CancelCorrect(taskID C.longlong) {
	if val, ok := taskMap.Load(int64(taskID)); ok {
		if cancel, ok := val.(context.CancelFunc); ok {
			cancel()
		}
	}
}

// CorrectText corrects a single string and returns a JSON object
// {"text": ..., "ranges": [[start, end], ...]} or {"error": ...}.
// The caller releases the result with FreeString.
//
//export CorrectText
func CorrectText(text *C.char, wordsJSON *C.char, mode *C.char) *C.char {
	return C.CString(correctTextJSON(C.GoString(text), C.GoString(wordsJSON), C.GoString(mode)))
}

//export FreeString
func FreeString(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func main() {}
