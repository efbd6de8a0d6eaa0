// internal/service/booking/infrastructure/adapter/transport.go
package adapter

import (
	"context"
	"errors"
	"net"
	"net/url"

	pkgerrors "github.com/pkg/errors"

	"voyago/internal/service/booking/domain/port"
)

// collaboratorResponse 是库存/支付协作方的统一响应格式。
type collaboratorResponse struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// classifyTransportError 把 HTTP 调用故障归类：
// 网络层不可达（连接拒绝、DNS、超时）归一为 ErrServiceUnavailable，
// 其余（非 2xx 响应等）原样返回，由上层按不可重试处理。
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return pkgerrors.Wrap(port.ErrServiceUnavailable, urlErr.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return pkgerrors.Wrap(port.ErrServiceUnavailable, netErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(port.ErrServiceUnavailable, err.Error())
	}
	return err
}

// toValidationResult 把协作方响应转换成校验结论。
func toValidationResult(resp collaboratorResponse) port.ValidationResult {
	if resp.Success {
		return port.Valid()
	}
	return port.Invalid(resp.ErrorCode, resp.Message)
}
