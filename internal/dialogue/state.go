package dialogue

import (
	"encoding/json"
	"time"

	"tendero/internal/model"
)

// Stage 购买会话阶段
type Stage string

const (
	StageIdle             Stage = "idle"                           // 无进行中的购买流程
	StageAwaitingProduct  Stage = "awaiting_product_confirmation"  // 等待用户确认加购
	StageCartOpen         Stage = "cart_open"                      // 购物车已开启
	StageAwaitingCheckout Stage = "awaiting_checkout_confirmation" // 等待用户确认结算
	StageCompleted        Stage = "completed"                      // 已完成，跳转支付
	StageCancelled        Stage = "cancelled"                      // 用户取消
)

// PendingProduct 待确认加购的商品
type PendingProduct struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

// State 购买会话状态（短生命周期，非持久化实体）
// 存放于短 TTL 缓存，进程重启后从最近一条结构化消息的元数据尽力重建；
// 丢失只会让用户重新开始流程，不会出错
type State struct {
	ConversationID string           `json:"conversation_id"`
	TenantID       string           `json:"tenant_id"`
	Stage          Stage            `json:"stage"`
	Pending        *PendingProduct  `json:"pending,omitempty"`
	Cart           []model.CartItem `json:"cart,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewState 创建空闲状态
func NewState(conversationID, tenantID string) *State {
	return &State{
		ConversationID: conversationID,
		TenantID:       tenantID,
		Stage:          StageIdle,
		UpdatedAt:      time.Now(),
	}
}

// Terminal 判断是否为终止阶段
func (s *State) Terminal() bool {
	return s.Stage == StageCompleted || s.Stage == StageCancelled
}

// CartSnapshot 生成购物车快照
func (s *State) CartSnapshot() *model.CartSnapshot {
	snapshot := &model.CartSnapshot{Items: make([]model.CartItem, len(s.Cart))}
	copy(snapshot.Items, s.Cart)
	for _, item := range s.Cart {
		snapshot.Total += item.Price * float64(item.Quantity)
	}
	return snapshot
}

// AddToCart 追加一个行项目；同商品合并数量
func (s *State) AddToCart(p PendingProduct, quantity int) {
	for i := range s.Cart {
		if s.Cart[i].ProductID == p.ProductID {
			s.Cart[i].Quantity += quantity
			return
		}
	}
	s.Cart = append(s.Cart, model.CartItem{
		ProductID: p.ProductID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  quantity,
	})
}

const metadataKey = "dialogue_state"

// Metadata 生成结构化消息元数据镜像
func (s *State) Metadata() map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return map[string]any{metadataKey: m}
}

// StateFromMetadata 从消息元数据重建状态（尽力而为）
func StateFromMetadata(md map[string]any) (*State, bool) {
	raw, ok := md[metadataKey]
	if !ok {
		return nil, false
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false
	}
	if state.ConversationID == "" || state.Stage == "" {
		return nil, false
	}

	return &state, true
}
