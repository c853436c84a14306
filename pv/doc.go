/*
Package pv adapts a control-system [Client] so that every callback it accepts runs on a [dispatch.Dispatcher] worker.

A [Connector] wraps connection and access callbacks in the metadata category, monitor callbacks in the monitor category, and put completions in the get_put category.
The [Handle] it returns embeds the client's [Channel], so the rest of the channel API is unchanged.

	conn, err := pv.Setup(log, client)
	if err != nil {
		return err
	}
	defer dispatch.InstallExitHook(ctx)()
	h, err := conn.GetPV(ctx, "sim:ai1", pv.GetPVOptions{
		ConnectOptions: pv.ConnectOptions{MonitorCallback: onUpdate},
		Connect:        true,
	})

Callbacks dispatched after the dispatcher stopped are dropped and logged, never run.
*/
package pv
