package statements

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ConstructaSaas/api"
	"ConstructaSaas/api/constants"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

const (
	stmtDefaultBucket = "constructa-docs"
	stmtPrefix        = "bankstatements/"
	stmtDefaultRegion = "us-east-1"
	presignLifetime   = 15 * time.Minute
)

func stmtBucket() string {
	if b := strings.TrimSpace(os.Getenv("BANK_STMT_S3_BUCKET")); b != "" {
		return b
	}
	return stmtDefaultBucket
}

func stmtRegion() string {
	if r := strings.TrimSpace(os.Getenv("BANK_STMT_S3_REGION")); r != "" {
		return r
	}
	return stmtDefaultRegion
}

// isS3Enabled reads BANK_STMT_S3_ENABLED; defaults to true when unset so
// production never silently skips the upload.
func isS3Enabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("BANK_STMT_S3_ENABLED")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes"
}

func sanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(s)
}

func buildStatementS3Key(accountNumber, fileHash, fileExt string) string {
	ext := strings.TrimSpace(fileExt)
	if ext == "" {
		ext = ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s%s/%s%s", stmtPrefix, sanitizePathSegment(accountNumber), fileHash, ext)
}

// normalizeCell trims, removes non-breaking spaces and collapses whitespace.
func normalizeCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, constants.NBSP, " ")
	return strings.Join(strings.Fields(s), " ")
}

func detectContentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	if len(data) > 512 {
		return http.DetectContentType(data[:512])
	}
	return http.DetectContentType(data)
}

// parseFlexibleDate accepts the date spellings seen across bank portals.
func parseFlexibleDate(s string) (time.Time, bool) {
	s = normalizeCell(s)
	for _, layout := range []string{constants.DateFormat, "01/02/2006", "1/2/2006", "02-01-2006", "Jan 2, 2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseStatementRows turns the uploaded file into a cell grid. Tries xlsx,
// then legacy xls, then csv, mirroring what banks actually export.
func parseStatementRows(data []byte) (rows [][]string, fileExt string, err error) {
	if xl, xlErr := excelize.OpenReader(bytes.NewReader(data)); xlErr == nil {
		defer xl.Close()
		sheetName := xl.GetSheetName(0)
		rows, err = xl.GetRows(sheetName)
		if err != nil {
			return nil, "", fmt.Errorf("read xlsx sheet: %w", err)
		}
		return rows, ".xlsx", nil
	}

	// Legacy xls: the reader wants a file path, so spill to a temp file.
	if tmp, tmpErr := os.CreateTemp("", "bankstmt-*.xls"); tmpErr == nil {
		defer os.Remove(tmp.Name())
		if _, werr := tmp.Write(data); werr == nil {
			tmp.Close()
			if book, xlsErr := xls.OpenFile(tmp.Name()); xlsErr == nil {
				if sheet, sheetErr := book.GetSheet(0); sheetErr == nil && sheet != nil {
					for _, xlsRow := range sheet.GetRows() {
						var rowVals []string
						for _, col := range xlsRow.GetCols() {
							rowVals = append(rowVals, col.GetString())
						}
						rows = append(rows, rowVals)
					}
					if len(rows) > 0 {
						return rows, ".xls", nil
					}
				}
			}
		} else {
			tmp.Close()
		}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err = r.ReadAll()
	if err != nil {
		return nil, "", errors.New("file is not a readable xlsx, xls, or csv")
	}
	return rows, ".csv", nil
}

// extractStatementMeta scans the head of the sheet for the labels banks put
// above the transaction grid: account number and statement period.
func extractStatementMeta(rows [][]string) (accountNumber string, periodStart, periodEnd *time.Time) {
	isLabel := func(cell string, labels ...string) bool {
		c := strings.TrimSuffix(normalizeCell(cell), ":")
		for _, l := range labels {
			if strings.EqualFold(c, l) {
				return true
			}
		}
		return false
	}
	limit := len(rows)
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		row := rows[i]
		for j, cell := range row {
			if j+1 >= len(row) {
				continue
			}
			next := normalizeCell(row[j+1])
			switch {
			case isLabel(cell, "Account Number", "Account No.", "Account No"):
				if accountNumber == "" {
					accountNumber = next
				}
			case isLabel(cell, "Period Start", "Statement From", "From"):
				if t, ok := parseFlexibleDate(next); ok {
					periodStart = &t
				}
			case isLabel(cell, "Period End", "Statement Through", "Statement To", "To"):
				if t, ok := parseFlexibleDate(next); ok {
					periodEnd = &t
				}
			}
		}
	}
	return accountNumber, periodStart, periodEnd
}

func uploadToS3(ctx context.Context, key string, body []byte, contentType string) error {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(stmtRegion()))
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(stmtBucket()),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload to s3 (bucket %s, key %s): %w", stmtBucket(), key, err)
	}
	return nil
}

func presignGetURL(ctx context.Context, key string) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(stmtRegion()))
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	presigner := s3.NewPresignClient(s3.NewFromConfig(cfg))
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(stmtBucket()),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = presignLifetime
	})
	if err != nil {
		return "", fmt.Errorf("presign get (key %s): %w", key, err)
	}
	return req.URL, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// UploadStatement ingests one bank statement file for an account: hash for
// dedupe, best-effort metadata extraction from the sheet, original bytes to
// S3, and a row in bank_statements. Parse failures downgrade to a warning;
// the document is still filed.
func UploadStatement(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			api.RespondWithResult(w, false, "expected multipart form: "+err.Error())
			return
		}
		userID := r.FormValue("user_id")
		accountID := r.FormValue("account_id")
		companyID := api.CompanyIDFromCtx(ctx, r.FormValue("company_id"))
		if accountID == "" {
			api.RespondWithResult(w, false, "account_id required")
			return
		}
		if !api.CtxHasApprovedAccount(ctx, accountID) {
			api.RespondWithResult(w, false, constants.ErrAccountNotApproved)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			api.RespondWithResult(w, false, "file required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil || len(data) == 0 {
			api.RespondWithResult(w, false, "could not read uploaded file")
			return
		}

		sum := sha256.Sum256(data)
		fileHash := hex.EncodeToString(sum[:])

		var accountNumber string
		if err := pool.QueryRow(ctx,
			`SELECT account_number FROM bank_accounts WHERE account_id = $1 AND company_id = $2`,
			accountID, companyID).Scan(&accountNumber); err != nil {
			api.RespondWithResult(w, false, constants.ErrAccountNotFound)
			return
		}

		var warning string
		var periodStart, periodEnd *time.Time
		rows, fileExt, parseErr := parseStatementRows(data)
		if parseErr != nil {
			fileExt = strings.ToLower(filepath.Ext(header.Filename))
			warning = "statement stored, but its contents could not be parsed: " + parseErr.Error()
		} else {
			sheetAccount, ps, pe := extractStatementMeta(rows)
			periodStart, periodEnd = ps, pe
			if sheetAccount != "" && normalizeCell(sheetAccount) != normalizeCell(accountNumber) {
				warning = fmt.Sprintf("statement lists account %s but was filed against %s", sheetAccount, accountNumber)
			}
		}

		s3Key := buildStatementS3Key(accountNumber, fileHash, fileExt)
		if isS3Enabled() {
			if err := uploadToS3(ctx, s3Key, data, detectContentType(data)); err != nil {
				api.LogError("UploadStatement: %v", err)
				api.RespondWithResult(w, false, "Failed to store the statement file")
				return
			}
		}

		statementID := uuid.New().String()
		actor := api.RequestedByFromCtx(ctx, userID)
		_, err = pool.Exec(ctx, `
            INSERT INTO bank_statements
                (statement_id, company_id, bank_account_id, file_name, s3_key,
                 file_hash, period_start, period_end, uploaded_by, uploaded_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`,
			statementID, companyID, accountID, header.Filename, s3Key,
			fileHash, periodStart, periodEnd, actor)
		if err != nil {
			if isUniqueViolation(err) {
				api.RespondWithResult(w, false, constants.ErrStatementDuplicate)
				return
			}
			api.LogError("UploadStatement insert failed: %v", err)
			api.RespondWithResult(w, false, "Failed to record the statement")
			return
		}

		payload := map[string]interface{}{
			"statement_id": statementID,
			"file_name":    header.Filename,
			"s3_key":       s3Key,
		}
		if periodStart != nil {
			payload["period_start"] = periodStart.Format(constants.DateFormat)
		}
		if periodEnd != nil {
			payload["period_end"] = periodEnd.Format(constants.DateFormat)
		}
		if warning != "" {
			payload["warning"] = warning
		}
		api.LogInfo("statement %s uploaded for account %s by %s", statementID, accountID, actor)
		api.RespondWithPayload(w, true, "", payload)
	}
}

// StatementURL issues a short-lived shareable link to the stored file.
func StatementURL(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID      string `json:"user_id"`
			StatementID string `json:"statement_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.StatementID == "" {
			api.RespondWithResult(w, false, "statement_id required")
			return
		}

		var s3Key, accountID string
		err := pool.QueryRow(ctx,
			`SELECT s3_key, bank_account_id FROM bank_statements WHERE statement_id = $1`,
			req.StatementID).Scan(&s3Key, &accountID)
		if err != nil {
			api.RespondWithResult(w, false, constants.ErrStatementNotFound)
			return
		}
		if !api.CtxHasApprovedAccount(ctx, accountID) {
			api.RespondWithResult(w, false, constants.ErrAccountNotApproved)
			return
		}

		url, err := presignGetURL(ctx, s3Key)
		if err != nil {
			api.LogError("StatementURL: %v", err)
			api.RespondWithResult(w, false, "Failed to issue a link for the statement")
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"url":        url,
			"expires_in": int(presignLifetime.Seconds()),
		})
	}
}

// ListStatements lists uploaded statements for an account, newest first.
func ListStatements(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			UserID    string `json:"user_id"`
			AccountID string `json:"account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.RespondWithResult(w, false, "invalid json: "+err.Error())
			return
		}
		if req.AccountID == "" {
			api.RespondWithResult(w, false, "account_id required")
			return
		}
		if !api.CtxHasApprovedAccount(ctx, req.AccountID) {
			api.RespondWithResult(w, false, constants.ErrAccountNotApproved)
			return
		}

		rows, err := pool.Query(ctx, `
            SELECT statement_id, file_name, period_start, period_end, uploaded_by, uploaded_at
            FROM bank_statements
            WHERE bank_account_id = $1
            ORDER BY uploaded_at DESC`, req.AccountID)
		if err != nil {
			api.LogError("ListStatements query failed: %v", err)
			api.RespondWithResult(w, false, constants.ErrFailedToQuery+" statements")
			return
		}
		defer rows.Close()

		out := make([]map[string]interface{}, 0)
		for rows.Next() {
			var id, fileName, uploadedBy string
			var ps, pe *time.Time
			var uploadedAt time.Time
			if err := rows.Scan(&id, &fileName, &ps, &pe, &uploadedBy, &uploadedAt); err != nil {
				api.RespondWithResult(w, false, constants.ErrFailedToQuery+" statements")
				return
			}
			row := map[string]interface{}{
				"statement_id": id,
				"file_name":    fileName,
				"uploaded_by":  uploadedBy,
				"uploaded_at":  uploadedAt,
			}
			if ps != nil {
				row["period_start"] = ps.Format(constants.DateFormat)
			}
			if pe != nil {
				row["period_end"] = pe.Format(constants.DateFormat)
			}
			out = append(out, row)
		}
		api.RespondWithPayload(w, true, "", out)
	}
}
