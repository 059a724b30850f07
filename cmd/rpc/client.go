package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/auric-network/auric/lib"
	"github.com/cenkalti/backoff/v4"
)

/*
	This file implements the rpc client used by the CLI. Submissions retry with
	exponential backoff so a node that is still coming up does not fail the
	command
*/

const clientRetries = 5

// Client talks to one node's staking API
type Client struct {
	rpcURL string
	client http.Client
}

// NewClient() creates a client against a node's rpc url
func NewClient(rpcURL string) *Client {
	return &Client{rpcURL: rpcURL, client: http.Client{Timeout: 10 * time.Second}}
}

// Version() returns the node's software version
func (c *Client) Version() (version string, err lib.ErrorI) {
	err = c.get(VersionRouteName, &version)
	return
}

// Height() returns the node's committed height
func (c *Client) Height() (height uint64, err lib.ErrorI) {
	err = c.get(HeightRouteName, &height)
	return
}

// Account() returns the gold and stake of an address
func (c *Client) Account(address string) (a *accountResponse, err lib.ErrorI) {
	a = new(accountResponse)
	err = c.post(AccountRouteName, &accountRequest{Address: address}, a)
	return
}

// Validators() returns the bonded validator set
func (c *Client) Validators() (v []*validatorResponse, err lib.ErrorI) {
	err = c.get(ValidatorsRouteName, &v)
	return
}

// BlockByHeight() returns a committed block as display JSON; the transaction
// payloads are interface-typed on the wire, so the client leaves them raw
func (c *Client) BlockByHeight(height uint64) (b json.RawMessage, err lib.ErrorI) {
	err = c.post(BlockRouteName, &blockRequest{Height: height}, &b)
	return
}

// SubmitTransaction() posts a wire encoded transaction
func (c *Client) SubmitTransaction(tx *lib.Transaction) lib.ErrorI {
	return c.post(TxRouteName, &txRequest{Tx: hex.EncodeToString(lib.MustMarshal(tx))}, new(string))
}

// Stake() bonds gold from the node's own account
func (c *Client) Stake(amount uint64) lib.ErrorI {
	return c.post("admin/"+StakeRouteName, &amountRequest{Amount: amount}, new(string))
}

// Unstake() schedules a release of the node's bonded gold
func (c *Client) Unstake(amount uint64) lib.ErrorI {
	return c.post("admin/"+UnstakeRouteName, &amountRequest{Amount: amount}, new(string))
}

// Send() transfers available gold from the node's own account
func (c *Client) Send(to string, amount uint64) lib.ErrorI {
	return c.post("admin/"+SendRouteName, &sendRequest{ToAddress: to, Amount: amount}, new(string))
}

// get() runs a GET request against a route with retry
func (c *Client) get(route string, ptr interface{}) lib.ErrorI {
	return c.withRetry(func() lib.ErrorI {
		resp, err := c.client.Get(c.rpcURL + "/v1/" + route)
		if err != nil {
			return lib.ErrRPCServerDown(err)
		}
		return readResponse(resp, ptr)
	})
}

// post() runs a POST request against a route with retry
func (c *Client) post(route string, request, ptr interface{}) lib.ErrorI {
	body, err := json.Marshal(request)
	if err != nil {
		return lib.ErrJSONMarshal(err)
	}
	return c.withRetry(func() lib.ErrorI {
		resp, er := c.client.Post(c.rpcURL+"/v1/"+route, "application/json", bytes.NewReader(body))
		if er != nil {
			return lib.ErrRPCServerDown(er)
		}
		return readResponse(resp, ptr)
	})
}

// withRetry() runs an operation under exponential backoff; any error status
// from the server (4xx or 5xx) is permanent and does not retry, while an
// unreachable server or an undecodable body retries up to clientRetries times
func (c *Client) withRetry(op func() lib.ErrorI) lib.ErrorI {
	var last lib.ErrorI
	err := backoff.Retry(func() error {
		if last = op(); last == nil {
			return nil
		}
		if last.Code() == lib.CodeRPCBadRequest {
			return backoff.Permanent(last)
		}
		return last
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), clientRetries))
	if err != nil {
		return last
	}
	return nil
}

// readResponse() decodes a JSON response, translating error statuses
func readResponse(resp *http.Response, ptr interface{}) lib.ErrorI {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return lib.ErrRPCServerDown(err)
	}
	if resp.StatusCode != http.StatusOK {
		e := new(lib.Error)
		if json.Unmarshal(body, e) == nil && e.Msg != "" {
			return lib.ErrRPCBadRequest(e.Msg)
		}
		return lib.ErrRPCBadRequest(fmt.Sprintf("status %d", resp.StatusCode))
	}
	if err = json.Unmarshal(body, ptr); err != nil {
		return lib.ErrJSONUnmarshal(err)
	}
	return nil
}
