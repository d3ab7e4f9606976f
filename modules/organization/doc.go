// Package organization manages tenants. Creating an organization also
// provisions its FREE subscription atomically, so every tenant resolves
// to an entitlement from its first moment.
package organization
