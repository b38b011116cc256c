package web

// errors.go centralizes the JSON bodies the API returns. Client-facing
// messages are fixed strings; the technical error only ever reaches the
// structured log, tagged with the request id.

import (
	"encoding/json"
	"net/http"

	"github.com/mfcampos/pessoas-api/internal/logging"
)

// Fixed client-facing messages. The upload contract pins the first three
// exactly; changing them breaks API consumers.
const (
	msgUploadSuccess = "Dados inseridos com sucesso!"
	msgFileRequired  = "Arquivo CSV é obrigatório!"
	msgNoValidRows   = "Nenhum dado válido encontrado no arquivo CSV."

	msgFileTooLarge  = "Arquivo excede o tamanho máximo permitido."
	msgTooManyActive = "Muitas importações em andamento. Tente novamente em instantes."
	msgInternalError = "Erro interno ao processar o arquivo CSV."
	msgRateLimited   = "Limite de requisições excedido. Tente novamente em instantes."
	msgInvalidLimit  = "Parâmetro limit inválido."
)

// writeError writes a JSON error body {"error": message} with the given
// status. The message must be one of the fixed client-facing strings.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
