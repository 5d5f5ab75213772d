package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crossfill/native/swap"
	"crossfill/observability"
)

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"swap_createOrder":  s.authorized("swap_createOrder", s.handleCreateOrder),
		"swap_fillOrder":    s.authorized("swap_fillOrder", s.handleFillOrder),
		"swap_withdrawFill": s.authorized("swap_withdrawFill", s.handleWithdrawFill),
		"swap_refundFill":   s.authorized("swap_refundFill", s.handleRefundFill),
		"swap_cancelOrder":  s.authorized("swap_cancelOrder", s.handleCancelOrder),
		"swap_mapAddress":   s.authorized("swap_mapAddress", s.handleMapAddress),
		"swap_setFeeRate":   s.authorized("swap_setFeeRate", s.handleSetFeeRate),
		"swap_sweepFees":    s.authorized("swap_sweepFees", s.handleSweepFees),
		"swap_updateAdmin":  s.authorized("swap_updateAdmin", s.handleUpdateAdmin),

		"swap_getOrder":     s.instrumented("swap_getOrder", s.handleGetOrder),
		"swap_getFill":      s.instrumented("swap_getFill", s.handleGetFill),
		"swap_listFills":    s.instrumented("swap_listFills", s.handleListFills),
		"swap_remaining":    s.instrumented("swap_remaining", s.handleRemaining),
		"swap_isComplete":   s.instrumented("swap_isComplete", s.handleIsComplete),
		"swap_fillSecret":   s.instrumented("swap_fillSecret", s.handleFillSecret),
		"swap_crossAddress": s.instrumented("swap_crossAddress", s.handleCrossAddress),
		"swap_feeState":     s.instrumented("swap_feeState", s.handleFeeState),
	}
}

// authorized wraps mutating handlers with bearer-token auth and metrics.
func (s *Server) authorized(name string, handler handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
		if rpcErr := s.requireAuth(r); rpcErr != nil {
			s.logger.Warn("rejected unauthorized request", "method", name, "client", clientIP(r))
			writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		s.instrumented(name, handler)(w, r, req)
	}
}

func (s *Server) instrumented(name string, handler handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r, req)
		var err error
		if rec.status >= http.StatusBadRequest {
			err = fmt.Errorf("status %d", rec.status)
		}
		observability.Swap().Observe(name, start, err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one params object, got %d", len(req.Params))
	}
	return json.Unmarshal(req.Params[0], out)
}

type createOrderParams struct {
	Maker                string `json:"maker"`
	Deposit              string `json:"deposit"`
	TotalAmount          string `json:"totalAmount"`
	MinFillAmount        string `json:"minFillAmount"`
	Hashlock             string `json:"hashlock"`
	Timelock             uint64 `json:"timelock"`
	SwapID               string `json:"swapId"`
	SourceChain          uint32 `json:"sourceChain"`
	DestChain            uint32 `json:"destChain"`
	DestAmountPerUnit    string `json:"destAmountPerUnit"`
	AllowPartialFills    bool   `json:"allowPartialFills"`
	MaxFills             uint32 `json:"maxFills"`
	MakerCrossAddress    string `json:"makerCrossAddress,omitempty"`
	ReceiverCrossAddress string `json:"receiverCrossAddress,omitempty"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	maker, err := parseAddress(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "maker", err.Error())
		return
	}
	deposit, err := parseAmount(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "deposit", err.Error())
		return
	}
	total, err := parseAmount(params.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "totalAmount", err.Error())
		return
	}
	minFill, err := parseAmount(params.MinFillAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "minFillAmount", err.Error())
		return
	}
	hashlock, err := parseHash(params.Hashlock)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "hashlock", err.Error())
		return
	}
	swapID, err := parseHash(params.SwapID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "swapId", err.Error())
		return
	}
	destPerUnit, err := parseAmount(params.DestAmountPerUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "destAmountPerUnit", err.Error())
		return
	}
	var makerCross, receiverCross []byte
	if params.MakerCrossAddress != "" {
		if makerCross, err = decodeHex(params.MakerCrossAddress); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "makerCrossAddress", err.Error())
			return
		}
	}
	if params.ReceiverCrossAddress != "" {
		if receiverCross, err = decodeHex(params.ReceiverCrossAddress); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "receiverCrossAddress", err.Error())
			return
		}
	}

	id, err := s.engine.CreateOrder(maker, deposit, swap.OrderParams{
		TotalAmount:          total,
		MinFillAmount:        minFill,
		Hashlock:             hashlock,
		Timelock:             params.Timelock,
		SwapID:               swapID,
		SourceChain:          swap.ChainID(params.SourceChain),
		DestChain:            swap.ChainID(params.DestChain),
		DestAmountPerUnit:    destPerUnit,
		AllowPartialFills:    params.AllowPartialFills,
		MaxFills:             params.MaxFills,
		MakerCrossAddress:    makerCross,
		ReceiverCrossAddress: receiverCross,
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"orderId": hex32(id)})
}

type fillOrderParams struct {
	OrderID  string `json:"orderId"`
	Taker    string `json:"taker"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver,omitempty"`
}

func (s *Server) handleFillOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params fillOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	orderID, err := parseHash(params.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "orderId", err.Error())
		return
	}
	taker, err := parseAddress(params.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "taker", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "amount", err.Error())
		return
	}
	receiver := taker
	if params.Receiver != "" {
		if receiver, err = parseAddress(params.Receiver); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "receiver", err.Error())
			return
		}
	}
	fillID, err := s.engine.FillOrder(orderID, taker, amount, receiver)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"fillId": hex32(fillID)})
}

type withdrawFillParams struct {
	FillID   string `json:"fillId"`
	Caller   string `json:"caller"`
	Preimage string `json:"preimage"`
}

func (s *Server) handleWithdrawFill(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params withdrawFillParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	fillID, err := parseHash(params.FillID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "fillId", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller", err.Error())
		return
	}
	preimage, err := parseHash(params.Preimage)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "preimage", err.Error())
		return
	}
	if err := s.engine.WithdrawFill(fillID, caller, preimage); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"withdrawn": true})
}

type fillRefParams struct {
	FillID string `json:"fillId"`
	Caller string `json:"caller"`
}

func (s *Server) handleRefundFill(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params fillRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	fillID, err := parseHash(params.FillID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "fillId", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller", err.Error())
		return
	}
	if err := s.engine.RefundFill(fillID, caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"refunded": true})
}

type orderRefParams struct {
	OrderID string `json:"orderId"`
	Caller  string `json:"caller,omitempty"`
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	orderID, err := parseHash(params.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "orderId", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller", err.Error())
		return
	}
	if err := s.engine.CancelOrder(orderID, caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

type mapAddressParams struct {
	Caller  string `json:"caller"`
	Kind    uint8  `json:"kind"`
	Address string `json:"address"`
}

func (s *Server) handleMapAddress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params mapAddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller", err.Error())
		return
	}
	raw, err := decodeHex(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address", err.Error())
		return
	}
	addr := swap.CrossChainAddress{Kind: swap.CrossChainAddressKind(params.Kind), Raw: raw}
	if err := s.engine.MapAddress(caller, addr); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"mapped": true})
}

type setFeeRateParams struct {
	Caller  string `json:"caller"`
	RateBps uint32 `json:"rateBps"`
}

func (s *Server) handleSetFeeRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setFeeRateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller", err.Error())
		return
	}
	if err := s.engine.SetFeeRate(caller, params.RateBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint32{"rateBps": params.RateBps})
}

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) handleSweepFees(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller", err.Error())
		return
	}
	if err := s.engine.SweepFees(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"swept": true})
}

type updateAdminParams struct {
	Caller string `json:"caller"`
	Next   string `json:"next"`
}

func (s *Server) handleUpdateAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params updateAdminParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller", err.Error())
		return
	}
	next, err := parseAddress(params.Next)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "next", err.Error())
		return
	}
	if err := s.engine.UpdateAdmin(caller, next); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"admin": hexAddr(next)})
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) handleGetOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id", err.Error())
		return
	}
	order, err := s.engine.GetOrder(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newOrderView(order))
}

func (s *Server) handleGetFill(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id", err.Error())
		return
	}
	fill, err := s.engine.GetFill(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newFillView(fill))
}

func (s *Server) handleListFills(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id", err.Error())
		return
	}
	if _, err := s.engine.GetOrder(id); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	fillIDs, err := s.engine.OrderFills(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	fills := make([]*fillView, 0, len(fillIDs))
	for _, fid := range fillIDs {
		fill, err := s.engine.GetFill(fid)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		fills = append(fills, newFillView(fill))
	}
	writeResult(w, req.ID, fills)
}

func (s *Server) handleRemaining(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{
		"remaining": amountString(s.engine.RemainingAmount(id)),
	})
}

func (s *Server) handleIsComplete(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"complete": s.engine.IsOrderComplete(id)})
}

func (s *Server) handleFillSecret(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id", err.Error())
		return
	}
	secret, err := s.engine.FillSecret(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := map[string]interface{}{"revealed": secret != nil}
	if secret != nil {
		result["secret"] = hex32(*secret)
	}
	writeResult(w, req.ID, result)
}

type accountParams struct {
	Account string `json:"account"`
}

func (s *Server) handleCrossAddress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "account", err.Error())
		return
	}
	addr, ok, err := s.engine.CrossAddress(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeSwapNotFound, "no cross-chain address mapped", nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"kind":    uint8(addr.Kind),
		"address": hexBytes(addr.Raw),
	})
}

func (s *Server) handleFeeState(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "swap_feeState takes no params", nil)
		return
	}
	admin, err := s.engine.Admin()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	rate, err := s.engine.FeeRateBps()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	fees, err := s.engine.AccumulatedFees()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"admin":           hexAddr(admin),
		"feeRateBps":      rate,
		"accumulatedFees": amountString(fees),
	})
}
