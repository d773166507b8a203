package errors

// 에러 코드 상수 정의
// 형식: CATEGORY_SPECIFIC_DETAIL
// 프론트엔드에서 이 코드를 기반으로 메시지를 매핑함

const (
	// ==================== 인증 (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // 로그인 필요
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // 잘못된 이메일/비밀번호
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"       // 토큰 만료
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"       // 잘못된 토큰
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"        // 이메일 중복

	// ==================== 인가/권한 (AUTHZ_) ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN"  // 접근 권한 없음
	AuthzAdminOnly = "AUTHZ_ADMIN_ONLY" // 관리자만 가능

	// ==================== 검증 (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT" // 잘못된 입력
	ValidationInvalidID    = "VALIDATION_INVALID_ID"    // 잘못된 ID
	ValidationInvalidRange = "VALIDATION_INVALID_RANGE" // 범위 초과
	ValidationRequired     = "VALIDATION_REQUIRED"      // 필수 항목

	// ==================== 리소스 (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"      // 리소스 없음
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS" // 이미 존재
	ResourceConflict      = "RESOURCE_CONFLICT"       // 충돌

	// ==================== 상품/재고 (PRODUCT_, STOCK_) ====================
	ProductNotFound        = "PRODUCT_NOT_FOUND"        // 상품 없음
	ProductUnavailable     = "PRODUCT_UNAVAILABLE"      // 판매 중지 상품
	StockInsufficient      = "STOCK_INSUFFICIENT"       // 단일 상품 재고 부족
	StockInsufficientOrder = "STOCK_INSUFFICIENT_ORDER" // 주문 전체 재고 부족 (부족 목록 포함)

	// ==================== 장바구니 (CART_) ====================
	CartItemNotFound = "CART_ITEM_NOT_FOUND" // 장바구니 항목 없음
	CartEmpty        = "CART_EMPTY"          // 빈 장바구니

	// ==================== 주문 (ORDER_) ====================
	OrderNotFound          = "ORDER_NOT_FOUND"          // 주문 없음
	OrderItemNotFound      = "ORDER_ITEM_NOT_FOUND"     // 주문 항목 없음
	OrderInvalidTransition = "ORDER_INVALID_TRANSITION" // 허용되지 않는 상태 변경
	OrderStatusConflict    = "ORDER_STATUS_CONFLICT"    // 동시 상태 변경 충돌

	// ==================== 내부 오류 (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"   // 서버 오류
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR" // DB 오류
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"   // 외부 API 오류
)
