package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/scrypt"

	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// identityKeySalt is a fixed application salt for key derivation. The
// secrecy lives in the configured passphrase, not the salt.
const identityKeySalt = "complaintdesk-identity-v1"

// IdentityService protects the authorship of anonymous complaints. It
// encrypts the author's user ID into an opaque token at submission time
// and decrypts it only for the HOD, writing an audit record for every
// successful reveal.
type IdentityService struct {
	db     *sql.DB
	logger *observability.Logger
	aead   cipher.AEAD
	audit  *AuditService
}

// NewIdentityService derives the encryption key from the configured
// passphrase and returns a ready service.
func NewIdentityService(db *sql.DB, logger *observability.Logger, passphrase string, audit *AuditService) (result0 *IdentityService, err error) {
	if logger == nil {
		panic("NewIdentityService: logger is nil")
	}
	if passphrase == "" {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityError, "identity encryption key is not configured", "")
	}

	key, err := scrypt.Key([]byte(passphrase), []byte(identityKeySalt), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to derive identity key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create GCM")
	}

	return &IdentityService{db: db, logger: logger, aead: aead, audit: audit}, nil
}

// Anonymize encrypts a student's user ID into an opaque token. A fresh
// nonce is drawn for every call, so two complaints by the same student
// produce unrelated tokens.
func (s *IdentityService) Anonymize(ctx context.Context, studentID int) (result0 string, err error) {
	_, span := observability.TraceIdentityFunction(ctx, "anonymize")
	defer observability.FinishSpan(span, &err)

	nonce := make([]byte, s.aead.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", contextutils.WrapError(err, "failed to generate nonce")
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(strconv.Itoa(studentID)), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// decrypt recovers the student ID from a token. Tokens that fail to
// decode, fail authentication, or do not contain an integer all map to
// the same corrupt-token error.
func (s *IdentityService) decrypt(token string) (int, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, contextutils.WrapError(contextutils.ErrCorruptToken, "token is not valid base64")
	}
	if len(sealed) < s.aead.NonceSize() {
		return 0, contextutils.WrapError(contextutils.ErrCorruptToken, "token is too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return 0, contextutils.WrapError(contextutils.ErrCorruptToken, "token failed authentication")
	}
	studentID, err := strconv.Atoi(string(plaintext))
	if err != nil {
		return 0, contextutils.WrapError(contextutils.ErrCorruptToken, "token payload is not a user id")
	}
	return studentID, nil
}

// Matches reports whether the token encrypts the given student ID. It is
// how ownership of an anonymous complaint is established for reopen and
// feedback without revealing the identity to anyone. A corrupt token is
// reported as an error, not as a mismatch.
func (s *IdentityService) Matches(ctx context.Context, token string, studentID int) (result0 bool, err error) {
	_, span := observability.TraceIdentityFunction(ctx, "match_identity")
	defer observability.FinishSpan(span, &err)

	decrypted, err := s.decrypt(token)
	if err != nil {
		return false, err
	}
	return decrypted == studentID, nil
}

// Reveal decrypts the author of an anonymous complaint for the HOD. Every
// successful reveal writes exactly one audit record before the identity
// is returned; if the audit insert fails, the reveal fails.
func (s *IdentityService) Reveal(ctx context.Context, actor models.Actor, c *models.Complaint) (result0 *models.User, err error) {
	ctx, span := observability.TraceIdentityFunction(ctx, "reveal_identity",
		observability.AttributeComplaintID(c.ComplaintID),
		attribute.Int("identity.requested_by", actor.ID),
	)
	defer observability.FinishSpan(span, &err)

	if actor.Role != models.RoleHod {
		return nil, contextutils.ErrForbidden
	}
	if !c.IsAnonymous || !c.IdentityToken.Valid {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidState, "complaint %s is not anonymous", c.ComplaintID)
	}

	studentID, err := s.decrypt(c.IdentityToken.String)
	if err != nil {
		s.logger.Error(ctx, "Identity token failed to decrypt", err,
			map[string]interface{}{"complaint_id": c.ComplaintID})
		return nil, err
	}

	var user models.User
	query := `SELECT id, name, email, role, roll_number, year, department FROM users WHERE id = $1`
	err = s.db.QueryRowContext(ctx, query, studentID).
		Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.RollNumber, &user.Year, &user.Department)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.WrapErrorf(contextutils.ErrCorruptToken, "token references a missing user")
		}
		return nil, contextutils.WrapError(err, "failed to load revealed user")
	}

	err = s.audit.Record(ctx, &models.AuditLog{
		PerformedBy: actor.ID,
		Action:      models.AuditViewAnonymousIdentity,
		ComplaintID: sql.NullInt32{Int32: int32(c.ID), Valid: true},
		TargetUser:  sql.NullInt32{Int32: int32(user.ID), Valid: true},
		Details:     sql.NullString{String: fmt.Sprintf("identity revealed on complaint %s", c.ComplaintID), Valid: true},
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to record identity reveal")
	}

	s.logger.Warn(ctx, "Anonymous identity revealed",
		map[string]interface{}{"complaint_id": c.ComplaintID, "performed_by": actor.ID})
	return &user, nil
}
