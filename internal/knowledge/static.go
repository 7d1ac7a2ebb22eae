package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Provider 定义数据集说明检索的通用接口。
type Provider interface {
	Query(question, dataset string) []Snippet
}

// Snippet 描述一条可供提示词引用的数据集说明。
type Snippet struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
	Datasets []string `json:"datasets"`
}

// StaticProvider 通过加载 JSON 文件提供静态说明检索能力，
// 也支持在运行期由数据集连接器插件追加条目。
type StaticProvider struct {
	mu         sync.RWMutex
	items      []Snippet
	maxResults int
}

// NewStaticProvider 创建静态说明库实例。
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{
		items:      items,
		maxResults: maxResults,
	}
}

// LoadStaticProvider 从 JSON 文件加载说明条目。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("说明库文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析说明库路径失败: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取说明库文件失败: %w", err)
	}
	defer file.Close()

	var entries []Snippet
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("解析说明库文件失败: %w", err)
	}

	return NewStaticProvider(entries, maxResults), nil
}

// Register 在运行期追加说明条目，标题与内容为空的条目会被忽略。
func (p *StaticProvider) Register(items ...Snippet) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.Content) == "" {
			continue
		}
		p.items = append(p.items, item)
	}
}

// Query 根据问题和数据集名称进行简单匹配。
func (p *StaticProvider) Query(question, dataset string) []Snippet {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	question = strings.ToLower(strings.TrimSpace(question))
	dataset = strings.ToLower(strings.TrimSpace(dataset))

	results := make([]Snippet, 0, p.maxResults)
	for _, item := range p.items {
		if matches(item, question, dataset) {
			results = append(results, item)
			if len(results) >= p.maxResults {
				break
			}
		}
	}
	return results
}

func matches(snippet Snippet, question, dataset string) bool {
	// 绑定了数据集的条目只在对应数据集下生效。
	if len(snippet.Datasets) > 0 {
		found := false
		for _, name := range snippet.Datasets {
			if strings.ToLower(strings.TrimSpace(name)) == dataset {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(snippet.Keywords) == 0 {
		return true
	}
	for _, keyword := range snippet.Keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if strings.Contains(question, normalized) {
			return true
		}
	}
	return false
}

// Ensure StaticProvider 实现 Provider 接口。
var _ Provider = (*StaticProvider)(nil)
