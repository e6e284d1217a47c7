// Package events defines the notification channels a lifecycle provider reports to.
//
// Read operations notify a [ReadEvents] listener, write operations a [WriteEvents] listener,
// and [CrudEvents] is a listener that receives both. Every method may veto the operation by
// returning an error, which propagates unchanged to the caller.
//
// Embed [NopRead], [NopWrite] or [Nop] to implement only the callbacks you need.
// [Compose] pairs separate read and write listeners, [Broadcast] fans out to several, and
// [Widen] adapts a listener written for any entity type to a concrete provider.
package events
