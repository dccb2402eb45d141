package model

// GatewayAPIVersion 网关对 UI 壳承诺的接口版本
const GatewayAPIVersion = "v1"

// Meta 网关响应的元数据
type Meta struct {
	RequestID  string `json:"request_id,omitempty"`
	APIVersion string `json:"api_version"`
}

// SuccessResponse 成功时只有 data
type SuccessResponse struct {
	Data interface{} `json:"data"`
	Meta Meta        `json:"meta"`
}

// ErrorDetail 错误的附加信息，例如失败时的引导状态
type ErrorDetail map[string]interface{}

// ErrorBody 错误码与后端 pkg/errors 的 Definition 一一对应
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details ErrorDetail `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
	Meta  Meta      `json:"meta"`
}

func NewSuccessResponse(data interface{}) SuccessResponse {
	return SuccessResponse{Data: data, Meta: Meta{APIVersion: GatewayAPIVersion}}
}

func NewErrorResponse(code, message string, details ErrorDetail) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
		Meta:  Meta{APIVersion: GatewayAPIVersion},
	}
}
