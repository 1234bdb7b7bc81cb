package api

// TriggerRequest is the body of POST /v1/trigger.
type TriggerRequest struct {
	Path   string `json:"path"`
	Source string `json:"source,omitempty"` // default "save"
}

type TriggerResponse struct {
	EventID  string `json:"event_id"`
	Decision string `json:"decision"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
