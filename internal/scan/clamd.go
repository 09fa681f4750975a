// Package scan 在上传前用 ClamAV 扫描文件。
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected 表示文件未通过病毒扫描。
var ErrInfected = errors.New("malicious file detected")

// Scanner 扫描一个文件流，文件可疑时返回 ErrInfected。
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 命令扫描。
type ClamdScanner struct {
	addr string
}

// NewClamdScanner 创建扫描器；addr 形如 tcp://clamav:3310。
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	client := clamd.NewClamd(s.addr)

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := client.ScanStream(r, abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	var infected bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-scanChan:
			if !ok {
				if infected {
					return ErrInfected
				}
				return nil
			}
			if result.Status != clamd.RES_OK {
				infected = true
			}
		}
	}
}

// Ping 检查 clamd 是否可用。
func (s *ClamdScanner) Ping(context.Context) error {
	return clamd.NewClamd(s.addr).Ping()
}

// Noop 不做任何扫描，未配置 clamd 时使用。
type Noop struct{}

func (Noop) Scan(context.Context, io.Reader) error { return nil }
