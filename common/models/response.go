package models

// BaseResponse wraps every successful API payload
type BaseResponse struct {
	Data interface{} `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Msg   string `json:"message"`
}

type MetaResponse struct {
	CurrentPage int64 `json:"current_page"`
	LastPage    int64 `json:"last_page"`
	PerPage     int64 `json:"per_page"`
	Total       int64 `json:"total"`
}

type BasePaginationResponse struct {
	Data interface{}  `json:"data"`
	Meta MetaResponse `json:"meta"`
}
