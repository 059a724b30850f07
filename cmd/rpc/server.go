package rpc

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/auric-network/auric/controller"
	"github.com/auric-network/auric/lib"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

/*
	This file implements the staking API server: the client-facing surface for
	submitting transactions, bonding and unbonding gold, and querying the chain
*/

const (
	colon = ":"

	VersionRouteName    = "version"
	HeightRouteName     = "height"
	AccountRouteName    = "account"
	ValidatorsRouteName = "validators"
	BlockRouteName      = "block"
	TxRouteName         = "tx"
	StakeRouteName      = "stake"
	UnstakeRouteName    = "unstake"
	SendRouteName       = "send"
)

const SoftwareVersion = "0.1.0"

// Server is the rpc front end of one validator node
type Server struct {
	controller *controller.Controller
	config     lib.Config
	logger     lib.LoggerI
	server     *http.Server
}

// NewServer() constructs and returns a new rpc server
func NewServer(c *controller.Controller, config lib.Config, logger lib.LoggerI) *Server {
	return &Server{controller: c, config: config, logger: logger}
}

// Start() serves the rpc router with a cors policy and a global timeout
func (s *Server) Start() {
	router := s.createRouter()
	cor := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS", "POST"},
	})
	timeout := time.Duration(s.config.TimeoutS) * time.Second
	s.server = &http.Server{
		Addr:    colon + s.config.RPCPort,
		Handler: cor.Handler(http.TimeoutHandler(router, timeout, lib.ErrRPCTimeout().Error())),
	}
	s.logger.Infof("Starting RPC server at 0.0.0.0:%s", s.config.RPCPort)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("rpc server stopped: %s", err.Error())
		}
	}()
}

// Stop() shuts the rpc server down
func (s *Server) Stop() {
	if s.server != nil {
		_ = s.server.Close()
	}
}

// createRouter() binds every route to its handler
func (s *Server) createRouter() *httprouter.Router {
	router := httprouter.New()
	router.GET("/v1/"+VersionRouteName, s.Version)
	router.GET("/v1/"+HeightRouteName, s.Height)
	router.POST("/v1/"+AccountRouteName, s.Account)
	router.GET("/v1/"+ValidatorsRouteName, s.Validators)
	router.POST("/v1/"+BlockRouteName, s.Block)
	router.POST("/v1/"+TxRouteName, s.Transaction)
	router.POST("/v1/admin/"+StakeRouteName, s.Stake)
	router.POST("/v1/admin/"+UnstakeRouteName, s.Unstake)
	router.POST("/v1/admin/"+SendRouteName, s.Send)
	return router
}

// request and response shapes below

type accountRequest struct {
	Address string `json:"address"`
}

type accountResponse struct {
	Address   string `json:"address"`
	Gold      uint64 `json:"gold"`
	Staked    uint64 `json:"staked"`
	Available uint64 `json:"available"`
}

type validatorResponse struct {
	Address    string `json:"address"`
	Stake      uint64 `json:"stake"`
	AccumPower int64  `json:"accumPower"`
}

type blockRequest struct {
	Height uint64 `json:"height"`
}

type txRequest struct {
	Tx string `json:"tx"` // hex of the wire encoded transaction
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type sendRequest struct {
	ToAddress string `json:"toAddress"`
	Amount    uint64 `json:"amount"`
}

// Version() returns the software version
func (s *Server) Version(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, s.logger, SoftwareVersion)
}

// Height() returns the height of the committed head
func (s *Server) Height(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, s.logger, s.controller.HeadBlock().Header.Height)
}

// Account() returns the gold and stake of an address at the head
func (s *Server) Account(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(accountRequest)
	if !readRequest(w, r, s.logger, req) {
		return
	}
	ledger := s.controller.HeadLedger()
	write(w, s.logger, &accountResponse{
		Address:   req.Address,
		Gold:      ledger.GoldOf(req.Address),
		Staked:    ledger.StakeOf(req.Address),
		Available: ledger.AvailableGold(req.Address),
	})
}

// Validators() returns the bonded validator set at the head
func (s *Server) Validators(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	ledger := s.controller.HeadLedger()
	validators := make([]*validatorResponse, 0)
	for _, addr := range ledger.Validators() {
		validators = append(validators, &validatorResponse{
			Address:    addr,
			Stake:      ledger.StakeOf(addr),
			AccumPower: ledger.AccumPowerOf(addr),
		})
	}
	write(w, s.logger, validators)
}

// Block() returns a committed block by height
func (s *Server) Block(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(blockRequest)
	if !readRequest(w, r, s.logger, req) {
		return
	}
	block, err := s.controller.BlockByHeight(req.Height)
	if err != nil {
		writeError(w, s.logger, http.StatusNotFound, err)
		return
	}
	write(w, s.logger, block)
}

// Transaction() submits a raw wire encoded transaction
func (s *Server) Transaction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(txRequest)
	if !readRequest(w, r, s.logger, req) {
		return
	}
	bz, err := hex.DecodeString(req.Tx)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, lib.ErrRPCBadRequest("transaction is not hex"))
		return
	}
	tx := new(lib.Transaction)
	if e := lib.Unmarshal(bz, tx); e != nil {
		writeError(w, s.logger, http.StatusBadRequest, e)
		return
	}
	if e := s.controller.HandleTransaction(tx); e != nil {
		writeError(w, s.logger, http.StatusBadRequest, e)
		return
	}
	s.controller.Broadcast(lib.ChannelTx, bz)
	write(w, s.logger, "ok")
}

// Stake() bonds gold from this node's own account
func (s *Server) Stake(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(amountRequest)
	if !readRequest(w, r, s.logger, req) {
		return
	}
	if err := s.controller.PostStakingTransaction(req.Amount); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err)
		return
	}
	write(w, s.logger, "ok")
}

// Unstake() schedules a release of this node's bonded gold
func (s *Server) Unstake(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(amountRequest)
	if !readRequest(w, r, s.logger, req) {
		return
	}
	if err := s.controller.PostUnstakingTransaction(req.Amount); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err)
		return
	}
	write(w, s.logger, "ok")
}

// Send() transfers available gold from this node's own account
func (s *Server) Send(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(sendRequest)
	if !readRequest(w, r, s.logger, req) {
		return
	}
	to, err := hex.DecodeString(req.ToAddress)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, lib.ErrRPCBadRequest("address is not hex"))
		return
	}
	if e := s.controller.PostSendTransaction(to, req.Amount); e != nil {
		writeError(w, s.logger, http.StatusBadRequest, e)
		return
	}
	write(w, s.logger, "ok")
}

// readRequest() decodes a JSON request body, replying 400 on failure
func readRequest(w http.ResponseWriter, r *http.Request, log lib.LoggerI, ptr interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, log, http.StatusBadRequest, lib.ErrRPCBadRequest(err.Error()))
		return false
	}
	if err = json.Unmarshal(body, ptr); err != nil {
		writeError(w, log, http.StatusBadRequest, lib.ErrRPCBadRequest(err.Error()))
		return false
	}
	return true
}

// write() replies 200 with a JSON body
func write(w http.ResponseWriter, log lib.LoggerI, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("rpc response write failed: %s", err.Error())
	}
}

// writeError() replies with an error status and the error body
func writeError(w http.ResponseWriter, log lib.LoggerI, status int, err lib.ErrorI) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if e := json.NewEncoder(w).Encode(err); e != nil {
		log.Errorf("rpc response write failed: %s", e.Error())
	}
}
