package types

// Response is the envelope every REST answer is wrapped in
type Response struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"status-code"`
	Data       interface{} `json:"data"`
}

// NewResponse creates an envelope
func NewResponse(status int, message string, data interface{}) Response {
	return Response{Message: message, StatusCode: status, Data: data}
}

// CreatedService is the data returned when a service is registered
type CreatedService struct {
	ID string `json:"id"`
}
