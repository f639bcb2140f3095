package journal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r-- (擁有者讀寫，其他人唯讀)
const fileModeDefault fs.FileMode = 0644

// Journal 是 append-only 的操作日誌 (JSON lines)
// 每筆已提交的帳本操作先落地再套用，重啟時以 Replay 重建記憶體狀態
type Journal struct {
	file *os.File
	mu   sync.Mutex
}

// Open 開啟或建立日誌檔
// O_APPEND 每次寫入自動跳到檔尾；O_CREATE 不存在則建立
func Open(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, fileModeDefault)
	if err != nil {
		return nil, err
	}
	return &Journal{file: file}, nil
}

// Append 寫入一筆記錄並立刻 fsync (Critical Path)
func (j *Journal) Append(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := json.NewEncoder(j.file).Encode(v); err != nil {
		return err
	}
	return j.file.Sync()
}

// Replay 從頭讀出所有記錄，逐筆交給 callback
// 逐筆解碼，避免一次把整個檔案載入記憶體
func (j *Journal) Replay(callback func(raw []byte) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(j.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}

// Close 關閉日誌檔
func (j *Journal) Close() error {
	return j.file.Close()
}
