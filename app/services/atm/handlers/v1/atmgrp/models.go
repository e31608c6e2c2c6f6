package atmgrp

import (
	"math/big"

	"github.com/metacrafters/atm/business/core/session"
)

// amountRequest is the payload of a deposit or withdrawal.
type amountRequest struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

type balanceResponse struct {
	Account string   `json:"account"`
	Balance *big.Int `json:"balance"`
}

type recordResponse struct {
	Record  session.Record `json:"record"`
	Display string         `json:"display"`
}

func toRecordResponses(recs []session.Record) []recordResponse {
	resp := make([]recordResponse, len(recs))
	for i, rec := range recs {
		resp[i] = recordResponse{
			Record:  rec,
			Display: rec.String(),
		}
	}

	return resp
}
