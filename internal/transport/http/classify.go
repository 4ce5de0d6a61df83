package http

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/astro-web3/obo-data-gateway/internal/app/gateway"
	"github.com/astro-web3/obo-data-gateway/internal/domain/delegation"
	"github.com/astro-web3/obo-data-gateway/internal/domain/identity"
	"github.com/astro-web3/obo-data-gateway/internal/infra/docstore"
)

const genericInternalMessage = "Internal server error"

type outcome struct {
	status     int
	message    string
	retryAfter string
}

// classify maps pipeline errors to the client-facing contract. Messages are
// fixed strings; wrapped causes stay in the logs.
func classify(err error) outcome {
	if errors.Is(err, gateway.ErrMissingAuthorization) {
		return outcome{status: http.StatusUnauthorized, message: "Missing authorization header"}
	}

	var validationErr *gateway.ValidationError
	if errors.As(err, &validationErr) {
		return outcome{status: http.StatusBadRequest, message: validationErr.Message}
	}

	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		// Metadata outage is a service-side failure, not a token fault.
		if authErr.Reason == identity.ReasonMetadataUnavailable {
			return outcome{status: http.StatusInternalServerError, message: genericInternalMessage}
		}
		return outcome{status: http.StatusUnauthorized, message: "Invalid or expired token"}
	}

	var deniedErr *gateway.AccessDeniedError
	if errors.As(err, &deniedErr) {
		return outcome{
			status:  http.StatusForbidden,
			message: fmt.Sprintf("Access denied to container '%s'", deniedErr.Container),
		}
	}

	var delegationErr *delegation.Error
	if errors.As(err, &delegationErr) {
		switch delegationErr.Reason {
		case delegation.ReasonConsentRequired, delegation.ReasonAssertionExpired:
			return outcome{
				status:  http.StatusUnauthorized,
				message: "Unable to act on behalf of the signed-in user",
			}
		default:
			return outcome{status: http.StatusInternalServerError, message: genericInternalMessage}
		}
	}

	var queryErr *docstore.QueryError
	if errors.As(err, &queryErr) {
		return classifyStoreError(queryErr)
	}

	return outcome{status: http.StatusInternalServerError, message: genericInternalMessage}
}

func classifyStoreError(queryErr *docstore.QueryError) outcome {
	switch queryErr.Kind {
	case docstore.KindNotFound:
		return outcome{status: http.StatusNotFound, message: "Container not found"}
	case docstore.KindForbidden:
		return outcome{status: http.StatusForbidden, message: "Access to the requested data was refused"}
	case docstore.KindUnauthorized:
		return outcome{status: http.StatusUnauthorized, message: "Invalid or expired token"}
	case docstore.KindBadRequest:
		return outcome{status: http.StatusBadRequest, message: "The query was rejected"}
	case docstore.KindThrottled:
		out := outcome{status: http.StatusTooManyRequests, message: "The data store is throttling requests"}
		if queryErr.RetryAfter > 0 {
			seconds := int(math.Ceil(queryErr.RetryAfter.Seconds()))
			out.retryAfter = strconv.Itoa(seconds)
		}
		return out
	default:
		return outcome{status: http.StatusInternalServerError, message: genericInternalMessage}
	}
}
