package memory

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tendero/internal/model"
)

// MessageFetcher 消息读取接口，由消息仓库实现
type MessageFetcher interface {
	ListRecent(ctx context.Context, conversationID primitive.ObjectID, limit int64) ([]*model.Message, error)
}

// Assembler 记忆装配器
// 把对话的持久化消息日志整理为有界的、按角色标注的模型上下文
type Assembler struct {
	messages     MessageFetcher
	window       int
	includeAdmin bool
}

// NewAssembler 创建记忆装配器
func NewAssembler(messages MessageFetcher, window int, includeAdmin bool) *Assembler {
	return &Assembler{
		messages:     messages,
		window:       window,
		includeAdmin: includeAdmin,
	}
}

// Build 装配模型上下文
// 取最近 window 条消息按时间正序映射为模型角色：user → user，bot → assistant；
// admin 消息是人工客服的运营回复，默认不进入模型上下文。
// 末尾追加本次用户消息，但若历史最后一条已是同文本的用户消息则不重复追加——
// 调用方先落库再装配时会出现这种双重提交。
// 读取失败时放行（fail-open）：返回只含当前消息的上下文，不阻断回复。
func (a *Assembler) Build(ctx context.Context, conversationID primitive.ObjectID, current string) []*schema.Message {
	history, err := a.messages.ListRecent(ctx, conversationID, int64(a.window))
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID.Hex()).
			Msg("failed to load conversation history, proceeding without memory")
		history = nil
	}

	transcript := make([]*schema.Message, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Sender {
		case model.SenderUser:
			transcript = append(transcript, schema.UserMessage(msg.Content))
		case model.SenderBot:
			transcript = append(transcript, schema.AssistantMessage(msg.Content, nil))
		case model.SenderAdmin:
			if a.includeAdmin {
				transcript = append(transcript, schema.AssistantMessage(msg.Content, nil))
			}
		}
	}

	trimmed := strings.TrimSpace(current)
	if n := len(transcript); n > 0 {
		last := transcript[n-1]
		if last.Role == schema.User && strings.TrimSpace(last.Content) == trimmed {
			return transcript
		}
	}

	return append(transcript, schema.UserMessage(current))
}
