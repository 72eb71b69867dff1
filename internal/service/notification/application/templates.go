package application

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/service/notification/domain"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

//go:embed templates/order_email.html
var orderEmailSource string

var orderEmail = template.Must(template.New("order_email").Parse(orderEmailSource))

// emailStyle 决定一类事件的通知类型、标题与正文开头。
type emailStyle struct {
	kind    domain.NotificationType
	subject string
	title   string
	message string
}

var emailStyles = map[contract.EventType]emailStyle{
	contract.EventOrderCreated: {
		kind:    domain.TypeOrderCreated,
		subject: "Order Confirmation - Order #%s",
		title:   "Order Confirmed!",
		message: "Your order has been successfully placed and is being processed.",
	},
	contract.EventOrderUpdated: {
		kind:    domain.TypeOrderUpdated,
		subject: "Order Update - Order #%s",
		title:   "Order Updated",
		message: "Your order has been updated. Please review the details below.",
	},
	contract.EventOrderCancelled: {
		kind:    domain.TypeOrderCancelled,
		subject: "Order Cancelled - Order #%s",
		title:   "Order Cancelled",
		message: "Your order has been cancelled. If you did not request this, please contact support.",
	},
}

var defaultEmailStyle = emailStyle{
	kind:    domain.TypeGeneral,
	subject: "Order Notification - Order #%s",
	title:   "Order Notification",
	message: "This is a notification about your order.",
}

func styleFor(t contract.EventType) emailStyle {
	if s, ok := emailStyles[t]; ok {
		return s
	}
	return defaultEmailStyle
}

type emailItem struct {
	ProductName string
	Quantity    int
	Price       string
	Subtotal    string
}

type emailData struct {
	Title     string
	Message   string
	Username  string
	OrderID   string
	Status    string
	CreatedAt string
	Items     []emailItem
	Total     string
	Year      int
}

// renderOrderEmail 返回事件对应的邮件主题与 HTML 正文。
func renderOrderEmail(e *contract.OrderEvent) (string, string, error) {
	style := styleFor(e.EventType)
	data := emailData{
		Title:     style.title,
		Message:   style.message,
		Username:  e.Username,
		OrderID:   e.OrderID,
		Status:    e.Status,
		CreatedAt: e.CreatedAt.Format(time.RFC1123),
		Total:     e.TotalAmount.StringFixed(2),
		Year:      time.Now().Year(),
	}
	for _, it := range e.Items {
		data.Items = append(data.Items, emailItem{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price.StringFixed(2),
			Subtotal:    it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).StringFixed(2),
		})
	}

	var buf bytes.Buffer
	if err := orderEmail.Execute(&buf, data); err != nil {
		return "", "", errors.Wrap(err, "render order email")
	}
	return fmt.Sprintf(style.subject, e.OrderID), buf.String(), nil
}
