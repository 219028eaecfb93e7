package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/taoyao-code/port-poller/internal/coremodel"
	"github.com/taoyao-code/port-poller/internal/fsutil"
)

// Encode 序列化状态文档，保留中文等非 ASCII 字符与 HTML 字符原样
func Encode(doc coremodel.StatusDocument) ([]byte, error) {
	if doc == nil {
		doc = coremodel.StatusDocument{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteDocument 整体替换状态文件（临时文件 + rename）
func WriteDocument(path string, doc coremodel.StatusDocument) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

// ReadDocument 读取状态文件
func ReadDocument(path string) (coremodel.StatusDocument, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode 反序列化状态文档
func Decode(b []byte) (coremodel.StatusDocument, error) {
	var doc coremodel.StatusDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return doc, nil
}
