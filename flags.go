package eventum

import "maps"

// Flag 读取标记，不存在时返回 nil
func (c *Connection) Flag(key any) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flags[key]
}

// LookupFlag 读取标记并返回是否存在
func (c *Connection) LookupFlag(key any) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.flags[key]
	return v, ok
}

// SetFlag 设置标记
func (c *Connection) SetFlag(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[key] = value
}

// AddFlags 批量设置标记
func (c *Connection) AddFlags(flags map[any]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Copy(c.flags, flags)
}

// RemoveFlag 删除标记，返回删除前是否存在
func (c *Connection) RemoveFlag(key any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.flags[key]
	delete(c.flags, key)
	return ok
}

// RemoveFlags 批量删除标记，不存在的键忽略
func (c *Connection) RemoveFlags(keys ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.flags, k)
	}
}

// ClearFlags 清空标记
func (c *Connection) ClearFlags() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.flags)
}

// Flags 所有标记的浅拷贝，修改返回值不影响连接
func (c *Connection) Flags() map[any]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.flags)
}
