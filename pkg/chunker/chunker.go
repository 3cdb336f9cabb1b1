package chunker

import (
	"errors"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	ErrEmptyDocument = errors.New("document content is empty")
	ErrInvalidOption = errors.New("overlap must be smaller than chunk size")
)

const (
	DefaultChunkSize = 800
	DefaultOverlap   = 120

	// boundaryTolerance 在硬切分点之前回溯寻找自然断点的最大距离
	boundaryTolerance = 200
)

type Options struct {
	ChunkSize int // 单个分片的最大长度（rune）
	Overlap   int // 相邻分片的重叠长度（rune）
}

func (o *Options) withDefaults() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Overlap < 0 {
		o.Overlap = DefaultOverlap
	}
}

type Chunk struct {
	Index      int    `json:"index"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
}

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func countTokens(s string) int {
	encoderOnce.Do(func() {
		encoder, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if encoder == nil {
		// offline fallback, tiktoken needs its bpe dictionary
		return len(s) / 4
	}
	return len(encoder.Encode(s, nil, nil))
}

// Split 按固定窗口切分文本，窗口尾部优先落在段落或句子边界上。
// 每个分片记录其在原文中的 rune 偏移，相同输入永远产生相同切分。
func Split(text string, opts Options) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	opts.withDefaults()
	if opts.Overlap >= opts.ChunkSize {
		return nil, ErrInvalidOption
	}

	runes := []rune(text)
	total := len(runes)

	var chunks []Chunk
	start := 0
	for start < total {
		end := start + opts.ChunkSize
		if end >= total {
			end = total
		} else {
			end = adjustBoundary(runes, start, end)
		}

		content := string(runes[start:end])
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			StartChar:  start,
			EndChar:    end,
			Content:    content,
			TokenCount: countTokens(content),
		})

		if end == total {
			break
		}

		next := end - opts.Overlap
		if next <= start {
			// overlap 大于实际切掉的长度时强制前进，避免死循环
			next = end
		}
		start = next
	}

	return chunks, nil
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
	'\n': true,
}

// adjustBoundary 在 [end-tolerance, end) 范围内回溯，优先段落边界，其次句子边界。
// 找不到自然断点时保持硬切分。
func adjustBoundary(runes []rune, start, end int) int {
	low := end - boundaryTolerance
	if low <= start {
		low = start + 1
	}

	// paragraph break first
	for i := end - 1; i > low; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}

	for i := end - 1; i >= low; i-- {
		if sentenceEnders[runes[i]] {
			return i + 1
		}
	}

	return end
}
