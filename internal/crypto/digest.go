// Package crypto provides the signature authentication for DAO entry points:
// canonical message digests, secp256k1 signing, address recovery, and
// encrypted storage for the relayer key.
package crypto

import (
	"fmt"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// domainTag versions the digest format. Bumping it invalidates every
// previously issued signature.
const domainTag = "kaledao/v1"

// messageDigest builds the canonical digest for an entry point: the method
// name and its fields joined by newlines under the domain tag, hashed with
// the EIP-191 personal-message prefix so ordinary wallet signers produce
// compatible signatures.
func messageDigest(method string, fields ...string) []byte {
	msg := domainTag + "/" + method + "\n" + strings.Join(fields, "\n")
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return ethcrypto.Keccak256([]byte(prefixed))
}

// InitializeDigest is signed by the admin to initialize the DAO.
func InitializeDigest(admin, token, oracle, treasury string) []byte {
	return messageDigest("initialize", admin, token, oracle, treasury)
}

// UpdateConfigDigest is signed by the admin to replace the contract wiring.
func UpdateConfigDigest(admin, token, oracle, treasury string) []byte {
	return messageDigest("update_config", admin, token, oracle, treasury)
}

// FormTeamDigest is signed by every founding member. All members sign the
// same digest, so one message round-trip per member is enough.
func FormTeamDigest(name string, members []string) []byte {
	return messageDigest("form_team", name, strings.Join(members, ","))
}

// StakeDigest is signed by the staking user.
func StakeDigest(teamName, user string, percentage int) []byte {
	return messageDigest("stake", teamName, user, strconv.Itoa(percentage))
}

// PredictionDigest is signed by the predictor.
func PredictionDigest(id, teamName, asset string, direction bool, stakeAmount int64, percentage int, predictor string) []byte {
	return messageDigest("make_prediction",
		id, teamName, asset,
		strconv.FormatBool(direction),
		strconv.FormatInt(stakeAmount, 10),
		strconv.Itoa(percentage),
		predictor,
	)
}

// DistributeDigest is signed by the admin to release rewards.
func DistributeDigest(predictionID string) []byte {
	return messageDigest("distribute_rewards", predictionID)
}
