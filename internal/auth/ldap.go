package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/tenantauth/tenantauth/internal/config"
	"github.com/tenantauth/tenantauth/internal/db/models"
)

const (
	defaultUsernameAttr  = "uid"
	defaultEmailAttr     = "mail"
	defaultFirstNameAttr = "givenName"
	defaultLastNameAttr  = "sn"
	defaultGroupNameAttr = "cn"
	defaultLDAPTimeout   = 10
)

// LDAPProvider handles LDAP/Active Directory authentication. It binds as
// the user to verify the password and returns a normalized Profile with
// the user's group names; it never touches the local user store.
type LDAPProvider struct {
	config config.LDAPAuth
}

// NewLDAPProvider creates a new LDAP provider.
func NewLDAPProvider(cfg config.LDAPAuth) *LDAPProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultLDAPTimeout
	}

	return &LDAPProvider{
		config: cfg,
	}
}

// Connect establishes a connection to the LDAP server.
func (p *LDAPProvider) Connect() (*ldap.Conn, error) {
	hostPort := net.JoinHostPort(p.config.Host, strconv.Itoa(p.config.Port))

	var ldapURL string
	if p.config.UseSSL {
		ldapURL = "ldaps://" + hostPort
	} else {
		ldapURL = "ldap://" + hostPort
	}

	var tlsConfig *tls.Config
	if p.config.UseSSL || p.config.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: p.config.SkipVerify, //nolint:gosec // explicitly opt-in for test setups
			ServerName:         p.config.Host,
		}
	}

	conn, err := ldap.DialURL(ldapURL, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	// Upgrade to TLS if requested (for non-SSL connections)
	if !p.config.UseSSL && p.config.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			if errClose := conn.Close(); errClose != nil {
				log.Error().Err(errClose).Msg("failed to close LDAP connection")
			}

			return nil, fmt.Errorf("failed to start TLS: %w", errStartTLS)
		}
	}

	conn.SetTimeout(time.Duration(p.config.Timeout) * time.Second)

	return conn, nil
}

// ResolveIdentity authenticates the username/password against the
// directory and returns the normalized profile including group names.
func (p *LDAPProvider) ResolveIdentity(_ context.Context, username, password string) (*Profile, error) {
	conn, err := p.Connect()
	if err != nil {
		return nil, err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if err := p.bindService(conn); err != nil {
		return nil, err
	}

	entry, err := p.searchUserEntry(conn, username)
	if err != nil {
		return nil, err
	}

	userDN := entry.DN

	if err := conn.Bind(userDN, password); err != nil {
		// Bad directory password is the same as any other credential mismatch.
		return nil, ErrInvalidCredentials
	}

	email := entry.GetAttributeValue(defaultEmailAttr)
	if email == "" {
		return nil, ErrProfileEmailMissing
	}

	// Re-bind with the service account for the group search; the
	// connection is still bound as the user here.
	if err := p.bindService(conn); err != nil {
		return nil, err
	}

	groups, err := p.getUserGroups(conn, userDN)
	if err != nil {
		return nil, fmt.Errorf("failed to get user groups: %w", err)
	}

	return &Profile{
		Email:      email,
		FirstName:  entry.GetAttributeValue(defaultFirstNameAttr),
		LastName:   entry.GetAttributeValue(defaultLastNameAttr),
		ExternalID: userDN,
		Source:     models.AuthSourceLDAP,
		Groups:     groups,
	}, nil
}

// bindService binds with the configured service account, if provided.
func (p *LDAPProvider) bindService(conn *ldap.Conn) error {
	if p.config.BindDN == "" {
		return nil
	}

	if err := conn.Bind(p.config.BindDN, p.config.BindPassword); err != nil {
		return fmt.Errorf("failed to bind with service account: %w", err)
	}

	return nil
}

// searchUserEntry searches LDAP for the given username and returns a single entry.
func (p *LDAPProvider) searchUserEntry(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	userFilter := strings.ReplaceAll(p.config.UserFilter, "{username}", ldap.EscapeFilter(username))
	searchRequest := ldap.NewSearchRequest(
		p.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // Size limit
		p.config.Timeout,
		false,
		userFilter,
		[]string{
			defaultUsernameAttr,
			defaultEmailAttr,
			defaultFirstNameAttr,
			defaultLastNameAttr,
			"dn",
		},
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search for user: %w", err)
	}

	switch len(searchResult.Entries) {
	case 0:
		return nil, ErrUserNotFound
	case 1:
		return searchResult.Entries[0], nil
	default:
		return nil, ErrMultipleUsersFound
	}
}

// getUserGroups retrieves the names of all groups a user belongs to.
func (p *LDAPProvider) getUserGroups(conn *ldap.Conn, userDN string) ([]string, error) {
	if p.config.GroupBaseDN == "" {
		return nil, nil
	}

	groupFilter := strings.ReplaceAll(p.config.GroupFilter, "{userdn}", ldap.EscapeFilter(userDN))
	searchRequest := ldap.NewSearchRequest(
		p.config.GroupBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		p.config.Timeout,
		false,
		groupFilter,
		[]string{defaultGroupNameAttr, "dn"},
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search for groups: %w", err)
	}

	groups := make([]string, 0, len(searchResult.Entries))

	for _, entry := range searchResult.Entries {
		if name := entry.GetAttributeValue(defaultGroupNameAttr); name != "" {
			groups = append(groups, name)
		}
	}

	return groups, nil
}

// TestConnection tests the LDAP server connection and bind credentials.
func (p *LDAPProvider) TestConnection() error {
	conn, err := p.Connect()
	if err != nil {
		return err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	return p.bindService(conn)
}
