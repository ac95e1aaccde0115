package errors

/*
	内置常用错误码
*/

var (
	// ErrServer 服务器错误
	ErrServer = New(1000, 500, "Internal Server Error", nil)
	// ErrBadRequest 客户端请求错误
	ErrBadRequest = New(1001, 400, "Bad Request", nil)
	// ErrUnauthorized 未授权
	ErrUnauthorized = New(1002, 401, "Unauthorized", nil)
	// ErrForbidden 禁止访问
	ErrForbidden = New(1003, 403, "Forbidden", nil)
	// ErrNotFound 资源不存在
	ErrNotFound = New(1004, 404, "Not Found", nil)
)
