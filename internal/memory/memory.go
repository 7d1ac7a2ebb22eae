package memory

import "strings"

// Role 标识会话中一条消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 表示会话中的一轮消息。
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Memory 按顺序保存用户与助手的历史对话，供大模型调用时提供上下文。
// Memory 不做内部加锁，默认每个会话由单个调用方串行使用。
type Memory struct {
	turns            []Turn
	windowSize       int
	agentDescription string
}

// Option 定义构造 Memory 时的可选配置。
type Option func(*Memory)

// WithWindowSize 限制对话视图中保留的轮次（一轮=一问一答）。
func WithWindowSize(size int) Option {
	return func(m *Memory) {
		if size > 0 {
			m.windowSize = size
		}
	}
}

// WithAgentDescription 设置系统提示中使用的助手角色描述。
func WithAgentDescription(description string) Option {
	return func(m *Memory) {
		m.agentDescription = strings.TrimSpace(description)
	}
}

// New 创建一个空的会话记忆。
func New(opts ...Option) *Memory {
	m := &Memory{}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// AddUser 追加一条用户消息。
func (m *Memory) AddUser(content string) {
	m.turns = append(m.turns, Turn{Role: RoleUser, Content: content})
}

// AddAssistant 追加一条助手消息。
func (m *Memory) AddAssistant(content string) {
	m.turns = append(m.turns, Turn{Role: RoleAssistant, Content: content})
}

// Count 返回已记录的消息条数。
func (m *Memory) Count() int {
	if m == nil {
		return 0
	}
	return len(m.turns)
}

// IsEmpty 判断记忆是否为空。
func (m *Memory) IsEmpty() bool {
	return m.Count() == 0
}

// AgentDescription 返回助手角色描述。
func (m *Memory) AgentDescription() string {
	if m == nil {
		return ""
	}
	return m.agentDescription
}

// All 返回全部消息的副本。
func (m *Memory) All() []Turn {
	if m == nil || len(m.turns) == 0 {
		return nil
	}
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Last 返回最近的一条消息。
func (m *Memory) Last() (Turn, bool) {
	if m == nil || len(m.turns) == 0 {
		return Turn{}, false
	}
	return m.turns[len(m.turns)-1], true
}

// GetMessages 返回窗口内的消息视图。窗口按轮次计算，0 表示不限。
func (m *Memory) GetMessages() []Turn {
	if m == nil || len(m.turns) == 0 {
		return nil
	}
	turns := m.turns
	if m.windowSize > 0 && len(turns) > m.windowSize*2 {
		turns = turns[len(turns)-m.windowSize*2:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// GetPreviousConversation 将窗口内的历史会话渲染为纯文本，
// 供不支持消息列表的模型拼接到提示词中。
func (m *Memory) GetPreviousConversation() string {
	turns := m.GetMessages()
	if len(turns) == 0 {
		return ""
	}
	var builder strings.Builder
	for i, turn := range turns {
		if i > 0 {
			builder.WriteString("\n")
		}
		switch turn.Role {
		case RoleUser:
			builder.WriteString("### QUERY\n")
		default:
			builder.WriteString("### ANSWER\n")
		}
		builder.WriteString(strings.TrimSpace(turn.Content))
	}
	return builder.String()
}

// Clear 清空全部历史消息。
func (m *Memory) Clear() {
	if m == nil {
		return
	}
	m.turns = nil
}
