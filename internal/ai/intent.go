package ai

import "strings"

// Intent 用户消息意图
type Intent string

const (
	IntentProductInquiry Intent = "product_inquiry" // 商品咨询
	IntentPurchase       Intent = "purchase"        // 购买意图
	IntentCart           Intent = "cart"            // 查看/管理购物车
	IntentCheckout       Intent = "checkout"        // 结算
	IntentGeneral        Intent = "general"         // 其他闲聊/通用问题
)

// IsPurchaseFlow 判断意图是否属于购买流程
func (i Intent) IsPurchaseFlow() bool {
	return i == IntentPurchase || i == IntentCart || i == IntentCheckout
}

// 关键词表覆盖西语和英语用户的常见表达
// 命中即高置信度返回，未命中的消息交给模型分类兜底
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentCheckout, []string{
		"checkout", "pagar", "finalizar compra", "proceder al pago", "pay now",
	}},
	{IntentCart, []string{
		"carrito", "mi carro", "ver carro", "cart", "my basket", "view cart",
	}},
	{IntentPurchase, []string{
		"comprar", "quiero comprar", "lo llevo", "agregar", "agrégalo", "añadir",
		"buy", "purchase", "add to cart", "i'll take it",
	}},
	{IntentProductInquiry, []string{
		"precio", "cuánto cuesta", "cuanto cuesta", "disponible", "stock", "envío",
		"garantía", "características", "batería", "how much", "price", "available",
		"shipping", "warranty", "specs",
	}},
}

// DetectIntent 关键词意图识别
// 返回意图与置信度；全部未命中时返回 general / 0
func DetectIntent(text string) (Intent, float64) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return IntentGeneral, 0
	}

	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(normalized, kw) {
				return group.intent, 0.9
			}
		}
	}

	return IntentGeneral, 0
}

// ParseIntent 将模型输出的意图标签解析为枚举值
func ParseIntent(label string) Intent {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "product_inquiry", "product", "inquiry":
		return IntentProductInquiry
	case "purchase", "buy":
		return IntentPurchase
	case "cart":
		return IntentCart
	case "checkout", "payment":
		return IntentCheckout
	default:
		return IntentGeneral
	}
}
