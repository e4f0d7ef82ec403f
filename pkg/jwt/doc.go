// Package jwt issues and verifies HS256 JSON Web Tokens.
//
//	svc, err := jwt.NewFromString(cfg.SigningKey)
//	if err != nil {
//		return err
//	}
//	token, err := svc.Generate(DriverClaims{
//		StandardClaims: jwt.StandardClaims{
//			Subject:   userID,
//			Issuer:    "chatbridge",
//			Audience:  []string{"driver-app"},
//			ExpiresAt: time.Now().Add(time.Hour).Unix(),
//			IssuedAt:  time.Now().Unix(),
//		},
//		Role: "Driver",
//	})
//
// Parse verifies the signature in constant time, then the exp and nbf claims
// of any embedded StandardClaims, before decoding into the destination.
//
// Errors:
//   - ErrInvalidToken: malformed token or not yet valid
//   - ErrExpiredToken: past its exp claim
//   - ErrInvalidSignature: signature mismatch
//   - ErrUnexpectedSigningMethod: header alg is not HS256
//   - ErrMissingSigningKey: empty key
//   - ErrMissingClaims: nil claims passed to Generate
package jwt
