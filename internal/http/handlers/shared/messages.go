package shared

// 面向买家的提示文案（西语站点）。key 未命中时原样返回，便于排查。
var errorMessages = map[string]string{
	"error.bad_request":  "Solicitud inválida",
	"error.unauthorized": "No autorizado",
	"error.forbidden":    "Acceso denegado",

	"error.auth_header_missing": "Falta la cabecera de autorización",
	"error.auth_header_invalid": "Cabecera de autorización inválida",
	"error.token_invalid":       "Sesión inválida, vuelve a iniciar sesión",
	"error.jwt_secret_missing":  "Autenticación no disponible",
	"error.user_disabled":       "La cuenta está deshabilitada",
	"error.login_failed":        "Correo o contraseña incorrectos",
	"error.login_too_many":      "Demasiados intentos, espera %d segundos",
	"error.register_failed":     "No se pudo completar el registro",
	"error.email_registered":    "El correo ya está registrado",
	"error.password_too_short":  "La contraseña debe tener al menos 6 caracteres",

	"error.user_id_invalid":       "Identificador de usuario inválido",
	"error.user_id_type_invalid":  "Identificador de usuario inválido",
	"error.admin_id_invalid":      "Identificador de administrador inválido",
	"error.admin_id_type_invalid": "Identificador de administrador inválido",

	"error.rate_limited":           "Demasiadas solicitudes, intenta en %d segundos",
	"error.rate_limit_unavailable": "Servicio temporalmente no disponible",

	"error.order_not_found":       "Pedido no encontrado",
	"error.order_fetch_failed":    "No se pudo consultar el pedido",
	"error.order_create_failed":   "No se pudo crear el pedido",
	"error.order_update_failed":   "No se pudo actualizar el pedido",
	"error.order_cancel_failed":   "No se pudo cancelar el pedido",
	"error.order_status_invalid":  "El estado del pedido no permite esta operación",
	"error.order_already_settled": "El pedido ya fue pagado o cerrado",
	"error.order_forbidden":       "El pedido pertenece a otro usuario",
	"error.order_amount_invalid":  "El importe del pedido es inválido",

	"error.cart_empty":           "El carrito está vacío",
	"error.cart_item_invalid":    "Artículo del carrito inválido",
	"error.cart_fetch_failed":    "No se pudo consultar el carrito",
	"error.cart_update_failed":   "No se pudo actualizar el carrito",
	"error.guest_email_required": "Se requiere un correo de contacto",

	"error.address_invalid":       "Dirección de entrega inválida",
	"error.address_not_found":     "Dirección no encontrada",
	"error.address_fetch_failed":  "No se pudo consultar la dirección",
	"error.address_create_failed": "No se pudo registrar la dirección",

	"error.slot_invalid":       "Fecha u horario de entrega inválido",
	"error.slot_unavailable":   "El horario de entrega ya no tiene cupo",
	"error.slot_fetch_failed":  "No se pudo consultar la disponibilidad",
	"error.slot_config_failed": "No se pudo configurar el horario",

	"error.payment_not_found":        "Pago no encontrado",
	"error.payment_pending_missing":  "El pedido no tiene un pago pendiente",
	"error.payment_declined":         "El pago fue rechazado por la pasarela",
	"error.payment_capture_failed":   "No se pudo procesar el pago",
	"error.gateway_unavailable":      "La pasarela de pagos no está disponible",
	"error.gateway_response_invalid": "Respuesta inesperada de la pasarela",
	"error.gateway_config_invalid":   "Pasarela de pagos mal configurada",

	"error.webhook_signature_invalid": "Firma de notificación inválida",
	"error.webhook_process_failed":    "No se pudo procesar la notificación",

	"error.invoice_not_found":    "Comprobante no encontrado",
	"error.invoice_fetch_failed": "No se pudo consultar el comprobante",
}

// MessageFor 将错误键转换为提示文案。
func MessageFor(key string) string {
	if msg, ok := errorMessages[key]; ok {
		return msg
	}
	return key
}
